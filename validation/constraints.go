package validation

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"

	"github.com/nazmi/sqlmodel/schema"
)

// checkConstraints applies the field constraints to an already coerced,
// non-nil value.
func checkConstraints(path string, f *Field, v any, issues *Errors) {
	info := f.Info

	if info.Const && !reflect.DeepEqual(v, f.constValue) {
		issues.Add(path, CodeConst, fmt.Sprintf("unexpected value; permitted: %v", f.constValue),
			map[string]any{"given": v, "permitted": f.constValue})
	}

	switch x := v.(type) {
	case string:
		checkString(path, info, x, issues)
	case []any:
		checkList(path, info, x, issues)
	default:
		if f.Type.Target().IsNumeric() && !f.Type.IsList() {
			if n, err := cast.ToFloat64E(v); err == nil {
				checkNumber(path, info, n, issues)
			}
		}
	}
}

func checkNumber(path string, info *schema.FieldInfo, n float64, issues *Errors) {
	if info.Gt != nil && !(n > *info.Gt) {
		issues.Add(path, CodeTooSmall, fmt.Sprintf("ensure this value is greater than %v", *info.Gt),
			map[string]any{"limit_value": *info.Gt})
	}
	if info.Ge != nil && !(n >= *info.Ge) {
		issues.Add(path, CodeTooSmall, fmt.Sprintf("ensure this value is greater than or equal to %v", *info.Ge),
			map[string]any{"limit_value": *info.Ge})
	}
	if info.Lt != nil && !(n < *info.Lt) {
		issues.Add(path, CodeTooBig, fmt.Sprintf("ensure this value is less than %v", *info.Lt),
			map[string]any{"limit_value": *info.Lt})
	}
	if info.Le != nil && !(n <= *info.Le) {
		issues.Add(path, CodeTooBig, fmt.Sprintf("ensure this value is less than or equal to %v", *info.Le),
			map[string]any{"limit_value": *info.Le})
	}
	if info.MultipleOf != nil && *info.MultipleOf != 0 {
		q := n / *info.MultipleOf
		if math.Abs(q-math.Round(q)) > 1e-9 {
			issues.Add(path, CodeMultipleOf, fmt.Sprintf("ensure this value is a multiple of %v", *info.MultipleOf),
				map[string]any{"multiple_of": *info.MultipleOf})
		}
	}
	if info.MaxDigits != nil || info.DecimalPlaces != nil {
		checkDigits(path, info, n, issues)
	}
}

func checkDigits(path string, info *schema.FieldInfo, n float64, issues *Errors) {
	s := strconv.FormatFloat(math.Abs(n), 'f', -1, 64)
	whole, frac, _ := strings.Cut(s, ".")
	whole = strings.TrimLeft(whole, "0")
	digits := len(whole) + len(frac)

	if info.MaxDigits != nil && digits > *info.MaxDigits {
		issues.Add(path, CodeDigits, fmt.Sprintf("ensure that there are no more than %d digits in total", *info.MaxDigits),
			map[string]any{"max_digits": *info.MaxDigits})
	}
	if info.DecimalPlaces != nil && len(frac) > *info.DecimalPlaces {
		issues.Add(path, CodeDigits, fmt.Sprintf("ensure that there are no more than %d decimal places", *info.DecimalPlaces),
			map[string]any{"decimal_places": *info.DecimalPlaces})
	}
	if info.MaxDigits != nil && info.DecimalPlaces != nil {
		maxWhole := *info.MaxDigits - *info.DecimalPlaces
		if len(whole) > maxWhole {
			issues.Add(path, CodeDigits, fmt.Sprintf("ensure that there are no more than %d digits before the decimal point", maxWhole),
				map[string]any{"whole_digits": maxWhole})
		}
	}
}

func checkString(path string, info *schema.FieldInfo, s string, issues *Errors) {
	n := utf8.RuneCountInString(s)
	if info.MinLength != nil && n < *info.MinLength {
		issues.Add(path, CodeTooShort, fmt.Sprintf("ensure this value has at least %d characters", *info.MinLength),
			map[string]any{"limit_value": *info.MinLength})
	}
	if info.MaxLength != nil && n > *info.MaxLength {
		issues.Add(path, CodeTooLong, fmt.Sprintf("ensure this value has at most %d characters", *info.MaxLength),
			map[string]any{"limit_value": *info.MaxLength})
	}
	if re := info.Pattern(); re != nil && !re.MatchString(s) {
		issues.Add(path, CodePattern, fmt.Sprintf("string does not match regex %q", info.Regex),
			map[string]any{"pattern": info.Regex})
	}
}

func checkList(path string, info *schema.FieldInfo, items []any, issues *Errors) {
	if info.MinItems != nil && len(items) < *info.MinItems {
		issues.Add(path, CodeTooShort, fmt.Sprintf("ensure this value has at least %d items", *info.MinItems),
			map[string]any{"limit_value": *info.MinItems})
	}
	if info.MaxItems != nil && len(items) > *info.MaxItems {
		issues.Add(path, CodeTooLong, fmt.Sprintf("ensure this value has at most %d items", *info.MaxItems),
			map[string]any{"limit_value": *info.MaxItems})
	}
	if info.UniqueItems {
		for i := range items {
			for j := i + 1; j < len(items); j++ {
				if reflect.DeepEqual(items[i], items[j]) {
					issues.Add(path, CodeUniqueItems, "the list has duplicated items", map[string]any{"index": j})
					return
				}
			}
		}
	}
}
