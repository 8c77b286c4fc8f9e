package middleware

import (
	"errors"

	"github.com/deicod/svcerr/apierror"
	internaloidc "github.com/deicod/svcerr/internal/oidc"
	"github.com/deicod/svcerr/tokensource"
)

// classify maps authentication failures onto the service error set. Anything it does
// not recognise is an internal service error.
func classify(err error) *apierror.Error {
	if errors.Is(err, tokensource.ErrNotFound) {
		return apierror.Wrap(apierror.KindUnauthorized, err)
	}

	var vErr *internaloidc.ValidationError
	if errors.As(err, &vErr) {
		if !vErr.Rejected() {
			return apierror.Wrap(apierror.KindJWKSFetch, vErr)
		}
		return apierror.Wrap(apierror.KindUnauthorized, vErr)
	}

	return apierror.Wrap(apierror.KindInternalService, err)
}
