package attrs

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

type fieldSpec struct {
	key   string
	index []int // reflect path
}

// walkFields visits every leaf field of rt. Nested structs flatten to
// dotted keys.
func walkFields(rt reflect.Type, visit func(f reflect.StructField, key string, index []int)) {
	var walk func(t reflect.Type, parent string, idx []int)
	walk = func(t reflect.Type, parent string, idx []int) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous || !f.IsExported() {
				continue
			}
			jsonKey := strings.Split(f.Tag.Get("json"), ",")[0]
			if jsonKey == "-" {
				continue
			}
			if jsonKey == "" {
				jsonKey = f.Name
			}
			fullKey := joinKey(parent, jsonKey)
			nextIdx := append(append([]int(nil), idx...), i)
			if isPureStruct(f.Type) {
				walk(f.Type, fullKey, nextIdx)
				continue
			}
			visit(f, fullKey, nextIdx)
		}
	}
	walk(rt, "", nil)
}

// AttributesOf derives attribute definitions from the fields of T:
//
//	type Product struct {
//		Color string   `json:"color" desc:"Main color" options:"red,green,blue"`
//		Tags  []string `json:"tags" attr:"multilabel_classification" desc:"Tags" options:"new,sale"`
//	}
//
// A field without an attr tag is a classification when it has options and
// free form otherwise. Fields without desc are skipped.
func AttributesOf[T any]() ([]AttributeDefinition, error) {
	var zero T
	rt := reflect.TypeOf(zero)
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: T must be struct", ErrInvalidAttribute)
	}

	var defs []AttributeDefinition
	var err error
	walkFields(rt, func(f reflect.StructField, key string, _ []int) {
		desc := f.Tag.Get("desc")
		if desc == "" || err != nil {
			return
		}
		def := AttributeDefinition{Name: key, Description: desc, TaskType: TaskType(f.Tag.Get("attr"))}
		if opts := f.Tag.Get("options"); opts != "" {
			for _, o := range strings.Split(opts, ",") {
				if o = strings.TrimSpace(o); o != "" {
					def.Options = append(def.Options, o)
				}
			}
		}
		if def.TaskType == "" {
			def.TaskType = TaskFreeForm
			if len(def.Options) > 0 {
				def.TaskType = TaskClassification
			}
		}
		if verr := def.Validate(); verr != nil {
			err = verr
			return
		}
		defs = append(defs, def)
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// DecodeLabel copies an annotation's label into dst, matching attribute
// names to json keys (dotted for nested structs). []string fields receive
// sequence items or sep-split text; other fields are decoded from the
// value's JSON or text form.
func DecodeLabel[T any](a *LLMAnnotation, dst *T, sep string) error {
	rv := reflect.ValueOf(dst).Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("decode label: %T is not a struct", *dst)
	}
	if sep == "" {
		sep = DefaultLabelSeparator
	}

	specs := map[string]fieldSpec{}
	walkFields(rv.Type(), func(_ reflect.StructField, key string, index []int) {
		specs[key] = fieldSpec{key: key, index: index}
	})

	for key, val := range a.Label {
		fs, ok := specs[key]
		if !ok {
			continue
		}
		field := rv
		for _, idx := range fs.index {
			field = field.Field(idx)
		}
		if err := setField(field, val, sep); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, val LabelValue, sep string) error {
	switch {
	case field.Kind() == reflect.String:
		field.SetString(val.String())
		return nil
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var items []string
		if val.Kind == KindSequence {
			for _, it := range val.Seq {
				items = append(items, scalarText(it))
			}
		} else if val.Text != "" {
			for _, it := range strings.Split(val.Text, sep) {
				items = append(items, strings.TrimSpace(it))
			}
		}
		out := reflect.MakeSlice(field.Type(), len(items), len(items))
		for i, it := range items {
			out.Index(i).SetString(it)
		}
		field.Set(out)
		return nil
	}

	ptr := field.Addr().Interface()
	if val.Kind == KindText && field.Kind() != reflect.Interface {
		// numbers and booleans arrive as text
		if err := json.Unmarshal([]byte(val.Text), ptr); err == nil {
			return nil
		}
	}
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, ptr)
}

func joinKey(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func isPureStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != reflect.TypeOf(time.Time{})
}
