package variant

// PreHandler runs before a mutation commits and may veto it by
// returning false; state is left untouched on veto.
type PreHandler func(container *Variant, op Op, key, oldVal, newVal *Variant) bool

// PostHandler runs after a mutation has been installed; informational
// only, cannot affect the outcome.
type PostHandler func(container *Variant, op Op, key, oldVal, newVal *Variant)

// observers holds the per-container, per-operation subscriber lists.
// Allocated lazily; most containers never get one.
type observers struct {
	pre  map[Op][]PreHandler
	post map[Op][]PostHandler
	// reentry guards against a handler re-entering a mutation on the
	// same container while its own pre/post pair is still running:
	// handlers must not themselves reenter the same container's
	// mutations.
	inDispatch bool
}

func (o *observers) addPre(op Op, h PreHandler) {
	if o.pre == nil {
		o.pre = make(map[Op][]PreHandler)
	}
	o.pre[op] = append(o.pre[op], h)
}

func (o *observers) addPost(op Op, h PostHandler) {
	if o.post == nil {
		o.post = make(map[Op][]PostHandler)
	}
	o.post[op] = append(o.post[op], h)
}

// firePre runs all pre-handlers for op; returns false if any vetoes.
func (o *observers) firePre(container *Variant, op Op, key, oldVal, newVal *Variant) bool {
	if o == nil {
		return true
	}
	if o.inDispatch {
		panic("variant: reentrant mutation on container under observation")
	}
	for _, h := range o.pre[op] {
		o.inDispatch = true
		ok := h(container, op, key, oldVal, newVal)
		o.inDispatch = false
		if !ok {
			return false
		}
	}
	return true
}

func (o *observers) firePost(container *Variant, op Op, key, oldVal, newVal *Variant) {
	if o == nil {
		return
	}
	o.inDispatch = true
	for _, h := range o.post[op] {
		h(container, op, key, oldVal, newVal)
	}
	o.inDispatch = false
}

// Observe subscribes pre/post handlers to a container for a given
// operation kind. Either handler may be nil. It is an error (ErrWrongKind)
// to observe a non-container variant.
func Observe(v *Variant, op Op, pre PreHandler, post PostHandler) error {
	obs := v.observersOrNil(true)
	if obs == nil {
		return newErr(ErrWrongKind, "Observe: not a container")
	}
	if pre != nil {
		obs.addPre(op, pre)
	}
	if post != nil {
		obs.addPost(op, post)
	}
	return nil
}

// observersOrNil returns the container's observer bus, allocating it if
// create is true and the variant is a container; nil for scalars.
func (v *Variant) observersOrNil(create bool) *observers {
	switch v.kind {
	case KindObject:
		if v.obj.obs == nil && create {
			v.obj.obs = &observers{}
		}
		return v.obj.obs
	case KindArray:
		if v.arr.obs == nil && create {
			v.arr.obs = &observers{}
		}
		return v.arr.obs
	case KindSet:
		if v.set.obs == nil && create {
			v.set.obs = &observers{}
		}
		return v.set.obs
	case KindTuple:
		if v.tuple.obs == nil && create {
			v.tuple.obs = &observers{}
		}
		return v.tuple.obs
	case KindSortedArray:
		if v.sorted.obs == nil && create {
			v.sorted.obs = &observers{}
		}
		return v.sorted.obs
	default:
		return nil
	}
}
