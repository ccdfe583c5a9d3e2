package tests

import (
	"errors"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// PageLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.PageLoader.
// setupData maps page ids to the title each stored page carries.
func PageLoaderContractTest(t *testing.T, loader ports.PageLoader, setupData map[string]string) {
	t.Helper()

	t.Run("LoadPage_Success", func(t *testing.T) {
		for id, title := range setupData {
			page, err := loader.LoadPage(id)
			if err != nil {
				t.Fatalf("unexpected error loading page %s: %v", id, err)
			}
			if page.Title != title {
				t.Errorf("title mismatch for %s. got %q, want %q", id, page.Title, title)
			}
		}
	})

	t.Run("LoadPage_NotFound", func(t *testing.T) {
		_, err := loader.LoadPage("non-existent-page")
		if !errors.Is(err, domain.ErrPageNotFound) {
			t.Errorf("expected ErrPageNotFound, got %v", err)
		}
	})

	t.Run("ListPages", func(t *testing.T) {
		pages, err := loader.ListPages()
		if err != nil {
			t.Fatalf("unexpected error listing pages: %v", err)
		}

		if len(pages) != len(setupData) {
			t.Errorf("expected %d pages, got %d", len(setupData), len(pages))
		}

		lookup := make(map[string]bool)
		for _, id := range pages {
			lookup[id] = true
		}

		for id := range setupData {
			if !lookup[id] {
				t.Errorf("page %s missing from list", id)
			}
		}
	})
}
