package storage

import (
	"github.com/deploymenttheory/go-its/pkg/app"
)

// Validate validates a set request
func (r *SetRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid asset target", err)
	}
	if _, err := app.ParseFlags(r.Flags); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid create flags", err)
	}
	if r.Data == nil && r.Length > 0 {
		return app.NewError(app.ErrCodeInvalidInput, "asset data is required", nil)
	}
	return nil
}

// Validate validates a get request
func (r *GetRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid asset target", err)
	}
	return nil
}

// Validate validates an info request
func (r *InfoRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid asset target", err)
	}
	return nil
}

// Validate validates a remove request
func (r *RemoveRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid asset target", err)
	}
	return nil
}

// Validate validates a format request
func (r *FormatRequest) Validate() error {
	if !r.Confirm {
		return app.NewError(app.ErrCodeInvalidInput, "format erases every asset, confirmation is required", nil)
	}
	return r.Stores.validate()
}

// Validate validates an inspect request
func (r *InspectRequest) Validate() error {
	return r.Stores.validate()
}

// Validate validates a stats request
func (r *StatsRequest) Validate() error {
	return r.Stores.validate()
}

func (s StoreSelector) validate() error {
	if s.PS && s.All {
		return app.NewError(app.ErrCodeInvalidInput, "cannot select both the PS store and all stores", nil)
	}
	return nil
}
