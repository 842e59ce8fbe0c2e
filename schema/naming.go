package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
)

// Namer derives table names from class names.
type Namer interface {
	TableName(class string) string
	IndexName(table, column string) string
}

// NamingStrategy is the default Namer. The zero value with SingularTable set
// reproduces the plain lower-cased class name.
type NamingStrategy struct {
	TablePrefix   string
	SingularTable bool
	// SnakeCase converts "HeroTeamLink" to "hero_team_link" instead of
	// "heroteamlink".
	SnakeCase bool
}

// DefaultNamer lower-cases class names.
var DefaultNamer Namer = NamingStrategy{SingularTable: true}

// TableName convert class name to table name
func (ns NamingStrategy) TableName(class string) string {
	name := strings.ToLower(class)
	if ns.SnakeCase {
		name = toDBName(class)
	}
	if ns.SingularTable {
		return ns.TablePrefix + name
	}
	return ns.TablePrefix + inflection.Plural(name)
}

// IndexName names the single-column index of table.column.
func (ns NamingStrategy) IndexName(table, column string) string {
	return fmt.Sprintf("ix_%s_%s", table, column)
}

var (
	smap sync.Map
	// https://github.com/golang/lint/blob/master/lint.go#L770
	commonInitialisms         = []string{"API", "ASCII", "CPU", "CSS", "DNS", "EOF", "GUID", "HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "LHS", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SSH", "TLS", "TTL", "UID", "UI", "UUID", "URI", "URL", "UTF8", "VM", "XML", "XSRF", "XSS"}
	commonInitialismsReplacer *strings.Replacer
)

func init() {
	var commonInitialismsForReplacer []string
	for _, initialism := range commonInitialisms {
		commonInitialismsForReplacer = append(commonInitialismsForReplacer, initialism, initialism[:1]+strings.ToLower(initialism[1:]))
	}
	commonInitialismsReplacer = strings.NewReplacer(commonInitialismsForReplacer...)
}

// ToSnake converts a Go-style identifier to snake_case.
func ToSnake(name string) string { return toDBName(name) }

func toDBName(name string) string {
	if name == "" {
		return ""
	} else if v, ok := smap.Load(name); ok {
		return v.(string)
	}

	var (
		value                          = commonInitialismsReplacer.Replace(name)
		buf                            strings.Builder
		lastCase, nextCase, nextNumber bool // upper case == true
		curCase                        = value[0] <= 'Z' && value[0] >= 'A'
	)

	for i, v := range value[:len(value)-1] {
		nextCase = value[i+1] <= 'Z' && value[i+1] >= 'A'
		nextNumber = value[i+1] >= '0' && value[i+1] <= '9'

		if curCase {
			if lastCase && (nextCase || nextNumber) {
				buf.WriteRune(v + 32)
			} else {
				if i > 0 && value[i-1] != '_' && value[i+1] != '_' {
					buf.WriteByte('_')
				}
				buf.WriteRune(v + 32)
			}
		} else {
			buf.WriteRune(v)
		}

		lastCase = curCase
		curCase = nextCase
	}

	if curCase {
		if !lastCase && len(value) > 1 {
			buf.WriteByte('_')
		}
		buf.WriteByte(value[len(value)-1] + 32)
	} else {
		buf.WriteByte(value[len(value)-1])
	}

	result := buf.String()
	smap.Store(name, result)
	return result
}
