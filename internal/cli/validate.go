package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/loader"
)

// Validate checks every page document of dir, or only the named pages.
// It prints one line per page and returns the joined validation errors.
func Validate(dir string, pageIDs []string, allowActions []string, w io.Writer) error {
	l := loader.NewFileLoader(dir)
	if len(pageIDs) == 0 {
		var err error
		if pageIDs, err = l.ListPages(); err != nil {
			return err
		}
	}
	if len(pageIDs) == 0 {
		return fmt.Errorf("no pages found in %s", dir)
	}

	var opts []loader.ValidateOption
	if len(allowActions) > 0 {
		types := make([]domain.ActionType, len(allowActions))
		for i, a := range allowActions {
			types[i] = domain.ActionType(a)
		}
		opts = append(opts, loader.AllowActionTypes(types...))
	}

	var errs []error
	for _, id := range pageIDs {
		page, err := l.LoadPage(id)
		if err == nil {
			err = loader.Validate(page, opts...)
		}
		if err != nil {
			fmt.Fprintf(w, "✘ %s\n", id)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "✔ %s\n", id)
	}
	return errors.Join(errs...)
}
