package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/edgard/langcoach/internal/errs"
)

func TestCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	tests := []struct {
		name         string
		err          error
		wantCode     string
		wantConfig   bool
		wantStartup  bool
		wantUnwrapTo error
	}{
		{
			name:         "configuration error",
			err:          errs.NewConfigurationError("bot token is required", cause),
			wantCode:     errs.CodeConfig,
			wantConfig:   true,
			wantUnwrapTo: cause,
		},
		{
			name:         "startup error",
			err:          errs.NewStartupError("telegram", cause),
			wantCode:     errs.CodeStartup,
			wantStartup:  true,
			wantUnwrapTo: cause,
		},
		{
			name:         "wrapped startup error",
			err:          fmt.Errorf("initialize: %w", errs.NewStartupError("widget", cause)),
			wantCode:     errs.CodeStartup,
			wantStartup:  true,
			wantUnwrapTo: cause,
		},
		{
			name:     "plain error",
			err:      cause,
			wantCode: errs.CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := errs.Code(tt.err); got != tt.wantCode {
				t.Errorf("Code() = %q, want %q", got, tt.wantCode)
			}
			if got := errs.IsConfiguration(tt.err); got != tt.wantConfig {
				t.Errorf("IsConfiguration() = %v, want %v", got, tt.wantConfig)
			}
			if got := errs.IsStartup(tt.err); got != tt.wantStartup {
				t.Errorf("IsStartup() = %v, want %v", got, tt.wantStartup)
			}
			if tt.wantUnwrapTo != nil && !errors.Is(tt.err, tt.wantUnwrapTo) {
				t.Errorf("errors.Is(err, cause) = false, want true")
			}
		})
	}
}

func TestStartupErrorCarriesAdapter(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrap: %w", errs.NewStartupError("telegram", errors.New("getMe failed")))

	var startupErr *errs.StartupError
	if !errors.As(err, &startupErr) {
		t.Fatalf("errors.As(StartupError) = false")
	}
	if startupErr.Adapter != "telegram" {
		t.Errorf("Adapter = %q, want %q", startupErr.Adapter, "telegram")
	}
	if want := `adapter "telegram" failed to start: getMe failed`; startupErr.Error() != want {
		t.Errorf("Error() = %q, want %q", startupErr.Error(), want)
	}
}
