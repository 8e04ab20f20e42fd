package variant

import (
	"fmt"
	"io"
	"strconv"
)

// Stringify feeds the variant's textual representation to sink,
// recursively for containers: mappings separate key from value with
// ":" and entries with newline; sequences are newline-separated
// values.
func Stringify(v *Variant, sink io.Writer) error {
	return stringify(v, sink)
}

func stringify(v *Variant, w io.Writer) error {
	if v == nil {
		_, err := io.WriteString(w, "")
		return err
	}
	switch v.kind {
	case KindUnitNull:
		return writeStr(w, "null")
	case KindUnitUndefined:
		return writeStr(w, "undefined")
	case KindBoolean:
		return writeStr(w, strconv.FormatBool(v.b))
	case KindException:
		return writeStr(w, v.atom.text)
	case KindNumber:
		return writeStr(w, strconv.FormatFloat(v.f64, 'g', -1, 64))
	case KindLongInt:
		return writeStr(w, strconv.FormatInt(v.i64, 10))
	case KindULongInt:
		return writeStr(w, strconv.FormatUint(v.u64, 10))
	case KindLongDouble:
		return writeStr(w, strconv.FormatFloat(v.ld.hi, 'g', -1, 64))
	case KindAtomString:
		return writeStr(w, v.atom.text)
	case KindString:
		return writeStr(w, v.str.text())
	case KindByteSequence:
		_, err := w.Write(v.bs.bytes())
		return err
	case KindBigint:
		return writeStr(w, v.big.Format(10))
	case KindDynamic:
		if v.dyn != nil && v.dyn.Getter != nil {
			r, err := v.dyn.Getter(nil)
			if err == nil && r != nil {
				return stringify(r, w)
			}
		}
		return nil
	case KindNative:
		return writeStr(w, fmt.Sprintf("<native:%s>", v.native.EntityName))
	case KindObject:
		for _, e := range v.obj.entries {
			if err := writeStr(w, e.key+":"); err != nil {
				return err
			}
			if err := stringify(e.val, w); err != nil {
				return err
			}
			if err := writeStr(w, "\n"); err != nil {
				return err
			}
		}
		return nil
	case KindArray:
		for _, e := range v.arr.items {
			if err := stringify(e, w); err != nil {
				return err
			}
			if err := writeStr(w, "\n"); err != nil {
				return err
			}
		}
		return nil
	case KindTuple:
		for _, e := range v.tuple.items {
			if err := stringify(e, w); err != nil {
				return err
			}
			if err := writeStr(w, "\n"); err != nil {
				return err
			}
		}
		return nil
	case KindSortedArray:
		for _, e := range v.sorted.items {
			if err := stringify(e, w); err != nil {
				return err
			}
			if err := writeStr(w, "\n"); err != nil {
				return err
			}
		}
		return nil
	case KindSet:
		var err error
		v.SetInsertionIterate(func(elem *Variant) bool {
			if e := stringify(elem, w); e != nil {
				err = e
				return false
			}
			if e := writeStr(w, "\n"); e != nil {
				err = e
				return false
			}
			return true
		})
		return err
	default:
		return nil
	}
}

func writeStr(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}
