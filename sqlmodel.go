// Package sqlmodel declares classes that are a validation schema and, when
// flagged as tables, a relational mapping at the same time.
//
// A class is declared once:
//
//	var Hero = sqlmodel.MustModel("Hero",
//	    sqlmodel.Table(true),
//	    sqlmodel.Attr("id", sqlmodel.Optional(sqlmodel.Int()), sqlmodel.Field(sqlmodel.Default(nil), sqlmodel.PrimaryKey(true))),
//	    sqlmodel.Attr("name", sqlmodel.String()),
//	    sqlmodel.Attr("teams", sqlmodel.List(sqlmodel.Ref("Team")),
//	        sqlmodel.Relationship(sqlmodel.BackPopulates("heroes"), sqlmodel.LinkModel(HeroTeamLink))),
//	)
//
// Collect splits the body into fields and relationships, the validation
// schema is built from the fields, and table classes also get a table, a
// mapper and their relationships. Instances are *Instance values whose
// Get and Set keep the validated values and the persistence state in step.
package sqlmodel

import (
	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/schema"
	"github.com/nazmi/sqlmodel/validation"
)

type (
	// TypeSpec is a field or relationship annotation.
	TypeSpec = schema.TypeSpec
	// FieldInfo is the descriptor returned by Field.
	FieldInfo = schema.FieldInfo
	// FieldOption configures a FieldInfo.
	FieldOption = schema.FieldOption
	// RelationshipInfo is the descriptor returned by Relationship.
	RelationshipInfo = schema.RelationshipInfo
	// RelationshipOption configures a RelationshipInfo.
	RelationshipOption = schema.RelationshipOption
	// ValidatorFunc checks or transforms a field value.
	ValidatorFunc = validation.ValidatorFunc
	// ValidationErrors is the error returned when input fails validation.
	ValidationErrors = validation.Errors
	// Extra is the policy for input keys that match no field.
	Extra = validation.Extra
)

const (
	ExtraIgnore = validation.ExtraIgnore
	ExtraForbid = validation.ExtraForbid
	ExtraAllow  = validation.ExtraAllow
)

// Error kinds, for use with errors.Is.
var (
	ErrConfiguration    = errs.ErrConfiguration
	ErrValidation       = errs.ErrValidation
	ErrUnknownAttribute = errs.ErrUnknownAttribute
	ErrNotMapped        = errs.ErrNotMapped
	ErrStorage          = errs.ErrStorage
)

// internalPrefix marks persistence bookkeeping keys. They are stored on the
// instance as-is and never validated or dumped.
const internalPrefix = "_sa_"

// Bool returns a pointer to b, for ModelConfig fields.
func Bool(b bool) *bool { return &b }
