package router

import "github.com/kailas-cloud/talkdb/internal/usecase/sqlengine"

// Catalog exposes a sqlengine.Registry as a SQLCatalog.
func Catalog(r *sqlengine.Registry) SQLCatalog {
	return registryCatalog{r: r}
}

type registryCatalog struct {
	r *sqlengine.Registry
}

func (c registryCatalog) Lookup(name string) (SQLEngine, error) {
	e, err := c.r.Get(name)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (c registryCatalog) Default() (SQLEngine, bool) {
	e, ok := c.r.First()
	if !ok {
		return nil, false
	}
	return e, true
}
