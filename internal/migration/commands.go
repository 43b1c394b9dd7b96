package migration

import (
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/index"
	"github.com/corvusdb/corvus/internal/value"
)

// Execute routes a MigrationStep to its effect against rt, by Kind.
func (s MigrationStep) Execute(rt Runtime) error {
	switch s.Kind {
	case AddField:
		return s.execAddField(rt)
	case RenameField:
		return s.execRenameField(rt)
	case DeleteField:
		return s.execDeleteField(rt)
	case ChangeDataType:
		return s.execChangeDataType(rt)
	case ChangeIDField:
		return s.execChangeIDField(rt)
	case RenameCollection:
		return rt.RenameCollection(s.CollectionName, s.NewCollectionName)
	case DropCollection:
		return rt.DropCollection(s.CollectionName)
	case CreateIndex:
		return s.execCreateIndex(rt)
	case DropIndex:
		return s.execDropIndex(rt)
	case Custom:
		if s.Custom == nil {
			return dberrors.New(dberrors.MigrationError, "MigrationStep.Execute", "custom step has no function")
		}
		return s.Custom(rt)
	default:
		return dberrors.New(dberrors.MigrationError, "MigrationStep.Execute", "unknown migration step kind")
	}
}

func (s MigrationStep) execAddField(rt Runtime) error {
	coll, err := rt.Collection(s.CollectionName)
	if err != nil {
		return err
	}
	return coll.ForEachMutate(func(doc *value.Document) (*value.Document, bool, error) {
		next := doc.Clone()
		var v value.Value
		if s.Generator != nil {
			gv, err := s.Generator(doc)
			if err != nil {
				return nil, false, err
			}
			v = gv
		} else {
			v = s.DefaultValue
		}
		next.Put(s.FieldName, v)
		return next, true, nil
	})
}

func (s MigrationStep) execRenameField(rt Runtime) error {
	coll, err := rt.Collection(s.CollectionName)
	if err != nil {
		return err
	}
	return coll.ForEachMutate(func(doc *value.Document) (*value.Document, bool, error) {
		v, ok := doc.Get(s.FieldName)
		if !ok {
			return doc, false, nil
		}
		next := doc.Clone()
		next.Delete(s.FieldName)
		next.Put(s.NewFieldName, v)
		return next, true, nil
	})
}

func (s MigrationStep) execDeleteField(rt Runtime) error {
	coll, err := rt.Collection(s.CollectionName)
	if err != nil {
		return err
	}
	return coll.ForEachMutate(func(doc *value.Document) (*value.Document, bool, error) {
		if !doc.ContainsKey(s.FieldName) {
			return doc, false, nil
		}
		next := doc.Clone()
		next.Delete(s.FieldName)
		return next, true, nil
	})
}

func (s MigrationStep) execChangeDataType(rt Runtime) error {
	if s.Converter == nil {
		return dberrors.New(dberrors.MigrationError, "ChangeDataType", "no converter supplied")
	}
	coll, err := rt.Collection(s.CollectionName)
	if err != nil {
		return err
	}
	return coll.ForEachMutate(func(doc *value.Document) (*value.Document, bool, error) {
		v, ok := doc.Get(s.FieldName)
		if !ok {
			return doc, false, nil
		}
		converted, err := s.Converter(v)
		if err != nil {
			return nil, false, err
		}
		next := doc.Clone()
		next.Put(s.FieldName, converted)
		return next, true, nil
	})
}

func (s MigrationStep) execChangeIDField(rt Runtime) error {
	coll, err := rt.Collection(s.CollectionName)
	if err != nil {
		return err
	}
	return coll.ForEachMutate(func(doc *value.Document) (*value.Document, bool, error) {
		v, ok := doc.Get(s.OldIDField)
		if !ok {
			return doc, false, nil
		}
		next := doc.Clone()
		next.Put(s.NewIDField, v)
		return next, true, nil
	})
}

func (s MigrationStep) execCreateIndex(rt Runtime) error {
	coll, err := rt.Collection(s.CollectionName)
	if err != nil {
		return err
	}
	return coll.CreateIndex(s.IndexFields, indexKindFromString(s.IndexKind), s.IndexUnique)
}

func (s MigrationStep) execDropIndex(rt Runtime) error {
	coll, err := rt.Collection(s.CollectionName)
	if err != nil {
		return err
	}
	if len(s.IndexFields) == 0 {
		for _, desc := range coll.Descriptors() {
			if err := coll.DropIndex(desc.Fields); err != nil {
				return err
			}
		}
		return nil
	}
	return coll.DropIndex(s.IndexFields)
}

func indexKindFromString(s string) index.Type {
	switch s {
	case "unique":
		return index.TypeUnique
	case "compound":
		return index.TypeCompound
	case "text":
		return index.TypeText
	case "spatial":
		return index.TypeSpatial
	default:
		return index.TypeNonUnique
	}
}
