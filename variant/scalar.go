package variant

import "sync"

// atomEntry backs an interned atom-string: content comparable by
// pointer identity once interned.
type atomEntry struct {
	text string
}

var atomTable = struct {
	mu sync.Mutex
	m  map[string]*atomEntry
}{m: make(map[string]*atomEntry)}

func internAtom(s string) *atomEntry {
	atomTable.mu.Lock()
	defer atomTable.mu.Unlock()
	if e, ok := atomTable.m[s]; ok {
		return e
	}
	e := &atomEntry{text: s}
	atomTable.m[s] = e
	return e
}

// stringData holds a string payload, inline for small content and
// out-of-line (optionally arena-backed) for large content: small
// strings are stored inline, otherwise an out-of-line buffer is
// allocated and extra-size is set.
type stringData struct {
	small [32]byte
	smallLen int
	buf       []byte // non-nil when out-of-line
}

func (s *stringData) text() string {
	if s.buf != nil {
		return string(s.buf)
	}
	return string(s.small[:s.smallLen])
}

type bytesData struct {
	small     [32]byte
	smallLen int
	buf       []byte
}

func (b *bytesData) bytes() []byte {
	if b.buf != nil {
		return b.buf
	}
	return b.small[:b.smallLen]
}

// --- constructors ---

// MakeNull / MakeUndefined / MakeBool return heap singletons (spec
// invariant 1).
func (h *Heap) MakeNull() *Variant      { return h.Null() }
func (h *Heap) MakeUndefined() *Variant { return h.Undefined() }
func (h *Heap) MakeBool(b bool) *Variant {
	return h.Bool(b)
}

// MakeException constructs an interned error-tag variant.
func (h *Heap) MakeException(tag string) *Variant {
	v := &Variant{kind: KindException, heap: h, atom: internAtom(tag)}
	v.refc.Store(1)
	h.accountAlloc(KindException, 0)
	return v
}

func (h *Heap) MakeNumber(f float64) *Variant {
	v := &Variant{kind: KindNumber, heap: h, f64: f}
	v.refc.Store(1)
	h.accountAlloc(KindNumber, 0)
	return v
}

func (h *Heap) MakeLongInt(i int64) *Variant {
	v := &Variant{kind: KindLongInt, heap: h, i64: i}
	v.refc.Store(1)
	h.accountAlloc(KindLongInt, 0)
	return v
}

func (h *Heap) MakeULongInt(u uint64) *Variant {
	v := &Variant{kind: KindULongInt, heap: h, u64: u}
	v.refc.Store(1)
	h.accountAlloc(KindULongInt, 0)
	return v
}

func (h *Heap) MakeLongDouble(hi float64, lo uint64) *Variant {
	v := &Variant{kind: KindLongDouble, heap: h, ld: longDouble{hi: hi, lo: lo}}
	v.refc.Store(1)
	h.accountAlloc(KindLongDouble, 0)
	return v
}

// MakeAtomString interns s and returns an atom-string variant.
func (h *Heap) MakeAtomString(s string) *Variant {
	v := &Variant{kind: KindAtomString, heap: h, atom: internAtom(s)}
	v.refc.Store(1)
	h.accountAlloc(KindAtomString, 0)
	return v
}

// MakeString constructs a UTF-8 string variant, using inline storage
// when s fits, otherwise an out-of-line buffer (arena-backed above
// mmapExtraSizeThreshold).
func (h *Heap) MakeString(s string) *Variant {
	sd := &stringData{}
	if len(s) <= len(sd.small) {
		sd.smallLen = copy(sd.small[:], s)
		v := &Variant{kind: KindString, heap: h, str: sd}
		v.refc.Store(1)
		h.accountAlloc(KindString, 0)
		return v
	}
	var buf []byte
	if len(s) >= mmapExtraSizeThreshold {
		buf = h.arena.alloc(len(s))
		copy(buf, s)
	} else {
		buf = []byte(s)
	}
	sd.buf = buf
	v := &Variant{kind: KindString, heap: h, str: sd, flags: FlagExtraSize}
	v.refc.Store(1)
	h.accountAlloc(KindString, len(buf))
	return v
}

// MakeStringReuseBuff transfers ownership of buf (no copy) as the
// string's out-of-line payload (spec "Reuse-buff constructors transfer
// ownership of a caller-allocated buffer").
func (h *Heap) MakeStringReuseBuff(buf []byte) *Variant {
	sd := &stringData{buf: buf}
	v := &Variant{kind: KindString, heap: h, str: sd, flags: FlagExtraSize}
	v.refc.Store(1)
	h.accountAlloc(KindString, len(buf))
	return v
}

// MakeByteSequence constructs a bounded binary blob variant.
func (h *Heap) MakeByteSequence(b []byte) *Variant {
	bd := &bytesData{}
	if len(b) <= len(bd.small) {
		bd.smallLen = copy(bd.small[:], b)
		v := &Variant{kind: KindByteSequence, heap: h, bs: bd}
		v.refc.Store(1)
		h.accountAlloc(KindByteSequence, 0)
		return v
	}
	var buf []byte
	if len(b) >= mmapExtraSizeThreshold {
		buf = h.arena.alloc(len(b))
		copy(buf, b)
	} else {
		buf = append([]byte(nil), b...)
	}
	bd.buf = buf
	v := &Variant{kind: KindByteSequence, heap: h, bs: bd, flags: FlagExtraSize}
	v.refc.Store(1)
	h.accountAlloc(KindByteSequence, len(buf))
	return v
}

func (h *Heap) MakeByteSequenceReuseBuff(buf []byte) *Variant {
	bd := &bytesData{buf: buf}
	v := &Variant{kind: KindByteSequence, heap: h, bs: bd, flags: FlagExtraSize}
	v.refc.Store(1)
	h.accountAlloc(KindByteSequence, len(buf))
	return v
}

// DynamicOps is the getter/setter pair backing a KindDynamic variant.
type DynamicOps struct {
	Getter func(args []*Variant) (*Variant, error)
	Setter func(args []*Variant) (*Variant, error)
}

func (h *Heap) MakeDynamic(ops *DynamicOps) *Variant {
	v := &Variant{kind: KindDynamic, heap: h, dyn: ops}
	v.refc.Store(1)
	h.accountAlloc(KindDynamic, 0)
	return v
}

// NativeOps is the operations table of a native entity: property
// getter, observe/forget/release hooks, and an opaque priv_ops slot
// used by protocol layers (message,
// websocket) to expose their own per-layer operations.
type NativeOps struct {
	EntityName    string
	PropertyGet   func(name string) (*Variant, error)
	OnObserve     func(event string) error
	OnForget      func(event string) error
	OnRelease     func()
	PrivOps       any
}

func (h *Heap) MakeNative(ptr any, ops *NativeOps) *Variant {
	v := &Variant{kind: KindNative, heap: h, native: ops}
	v.refc.Store(1)
	h.accountAlloc(KindNative, 0)
	_ = ptr // the opaque pointer is carried by the caller via PrivOps/closures
	return v
}

func (v *Variant) releaseString() {
	if v.str != nil && v.str.buf != nil && len(v.str.buf) >= mmapExtraSizeThreshold {
		v.heap.arena.free(v.str.buf)
	}
}

func (v *Variant) releaseBytes() {
	if v.bs != nil && v.bs.buf != nil && len(v.bs.buf) >= mmapExtraSizeThreshold {
		v.heap.arena.free(v.bs.buf)
	}
}

// releaseNative invokes the entity's release hook, if any, when its
// last reference drops.
func (v *Variant) releaseNative() {
	if v.native != nil && v.native.OnRelease != nil {
		v.native.OnRelease()
	}
}

// AsBool / AsLongInt / AsULongInt / AsNumber / AsString / AsBytes /
// AsAtom are narrow accessors; callers should check Kind() first.
func (v *Variant) AsBool() bool         { return v.b }
func (v *Variant) AsLongInt() int64     { return v.i64 }
func (v *Variant) AsULongInt() uint64   { return v.u64 }
func (v *Variant) AsNumber() float64    { return v.f64 }
func (v *Variant) AsString() string     { return v.str.text() }
func (v *Variant) AsBytes() []byte      { return v.bs.bytes() }
func (v *Variant) AsAtom() string       { return v.atom.text }
func (v *Variant) AsBigint() *Bigint    { return v.big }
func (v *Variant) AsLongDouble() (float64, uint64) { return v.ld.hi, v.ld.lo }
