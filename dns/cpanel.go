package dns

import (
	"context"

	"github.com/sasta-kro/labuh-go/errs"
)

// CPanel is an unimplemented Provider stub. cPanel's DNS API varies by
// hosting panel version and is not wired to a concrete backend here;
// every call reports a ProviderError so the saga's compensation path
// runs deterministically rather than silently no-opping.
type CPanel struct{}

func (CPanel) CreateRecord(ctx context.Context, req CreateRecordRequest) (string, error) {
	return "", errs.New(errs.ProviderErrorKind, "cPanel DNS provider is not implemented")
}

func (CPanel) DeleteRecord(ctx context.Context, recordID string) error {
	return errs.New(errs.ProviderErrorKind, "cPanel DNS provider is not implemented")
}
