package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/shared"
)

// fakeEngineAPI imports any URL containing "ok" and rejects the rest.
type fakeEngineAPI struct {
	*fakeExportAPI
	imported []models.WorkImportRequest
}

func (f *fakeEngineAPI) ImportWork(ctx context.Context, req models.WorkImportRequest) (*models.Work, error) {
	f.imported = append(f.imported, req)
	if !strings.Contains(req.URL, "ok") {
		return nil, &services.APIError{StatusCode: 422, Detail: "Unsupported source"}
	}
	return &models.Work{ID: len(f.imported), Title: "Work " + req.URL}, nil
}

func TestEngineImport(t *testing.T) {
	t.Run("Reports A Result Per URL", func(t *testing.T) {
		api := &fakeEngineAPI{fakeExportAPI: newFakeExportAPI(0)}
		engine := NewEngine(api)
		prog := make(chan ProgressUpdate, 10)

		result, err := engine.Import(context.Background(), []string{" https://a/ok ", "", "https://b/bad"}, true, prog)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		close(prog)

		if result.SuccessCount != 1 || result.FailedCount != 1 || len(result.Results) != 2 {
			t.Fatalf("unexpected result %+v", result)
		}
		if r := result.Results[0]; !r.OK() || r.Message != "Imported Work https://a/ok" {
			t.Errorf("unexpected success %+v", r)
		}
		if r := result.Results[1]; r.OK() || r.Message != "Unsupported source" {
			t.Errorf("unexpected failure %+v", r)
		}
		if !api.imported[0].Force || api.imported[0].URL != "https://a/ok" {
			t.Errorf("expected trimmed URL with force, got %+v", api.imported[0])
		}

		var messages []string
		for u := range prog {
			if u.Phase != ImportWorks {
				t.Errorf("unexpected phase %s", u.Phase)
			}
			messages = append(messages, u.Message)
		}
		if len(messages) != 4 || !strings.Contains(messages[3], "✗ Unsupported source") {
			t.Errorf("unexpected progress %q", messages)
		}
	})

	t.Run("No URLs", func(t *testing.T) {
		api := &fakeEngineAPI{fakeExportAPI: newFakeExportAPI(0)}
		_, err := NewEngine(api).Import(context.Background(), []string{" ", ""}, false, nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
		if len(api.imported) != 0 {
			t.Error("expected no requests")
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		api := &fakeEngineAPI{fakeExportAPI: newFakeExportAPI(0)}

		result, err := NewEngine(api).Import(ctx, []string{"https://a/ok"}, false, nil)
		if !errors.Is(err, context.Canceled) || len(result.Results) != 0 {
			t.Errorf("expected cancellation before any import, got %v %+v", err, result)
		}
	})

	t.Run("Nil Client", func(t *testing.T) {
		if _, err := NewEngine(nil).Import(context.Background(), []string{"x"}, false, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if _, err := NewEngine(nil).Export(context.Background(), 1, nil, BulkExportOpts{}, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestSendProgress(t *testing.T) {
	t.Run("Drops When Full", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		sendProgress(ch, ProgressUpdate{Message: "first"})
		sendProgress(ch, ProgressUpdate{Message: "second"})

		if got := (<-ch).Message; got != "first" {
			t.Errorf("expected first update kept, got %q", got)
		}
	})

	t.Run("Nil Channel", func(t *testing.T) {
		sendProgress(nil, ProgressUpdate{Message: "ignored"})
	})
}
