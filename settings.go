package sqlmodel

import (
	"strings"

	"github.com/nazmi/sqlmodel/config"
	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/logger"
	"github.com/nazmi/sqlmodel/schema"
)

// ApplySettings configures the default registry from s.
func ApplySettings(s *config.Settings) error {
	return DefaultRegistry().ApplySettings(s)
}

// ApplySettings sets the logger, table naming, StrictTable default and
// fallback dialect of r. Classes declared earlier keep their table names.
func (r *Registry) ApplySettings(s *config.Settings) error {
	if s == nil {
		s = config.Default()
	}
	if err := s.Validate(); err != nil {
		return errs.Wrap(errs.KindConfiguration, "invalid settings", err)
	}
	level, err := logger.ParseLevel(s.Log.Level)
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, "invalid settings", err)
	}
	log, err := logger.New(s.Log.Backend, logger.Config{LogLevel: level, SlowThreshold: s.Log.SlowThreshold})
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, "invalid settings", err)
	}
	r.setLogger(log)

	r.mu.Lock()
	r.naming = schema.NamingStrategy{
		TablePrefix:   s.Naming.TablePrefix,
		SingularTable: s.Naming.SingularTable,
		SnakeCase:     strings.EqualFold(s.Naming.Strategy, "snake"),
	}
	r.strict = s.Validation.StrictTable
	r.dialect = s.Database.Dialect
	r.mu.Unlock()
	return nil
}
