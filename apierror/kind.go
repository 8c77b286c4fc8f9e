package apierror

import "net/http"

// Kind is one of the closed set of failure categories a request can end with.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindUnauthorized
	KindInternalService
	KindBadRequest
	KindJWKSFetch
)

const (
	NameNotFound        = "NotFoundError"
	NameUnauthorized    = "UnathorizedError"
	NameInternalService = "InternalServiceError"
	NameBadRequest      = "BadRequestError"
	NameJWKSFetch       = "JWKSFetchError"
)

const (
	MessageNotFound        = "Requested resource not found"
	MessageUnauthorized    = "Unauthorized"
	MessageInternalService = "Something went wrong on our side. Please, try again after some time"
	MessageBadRequest      = "Bad request"
	MessageJWKSFetch       = "Could not fetch JWKS"
)

type descriptor struct {
	status  int
	name    string
	message string
}

// Unknown kinds resolve to the internal service row.
var descriptors = map[Kind]descriptor{
	KindNotFound:        {status: http.StatusNotFound, name: NameNotFound, message: MessageNotFound},
	KindUnauthorized:    {status: http.StatusUnauthorized, name: NameUnauthorized, message: MessageUnauthorized},
	KindInternalService: {status: http.StatusInternalServerError, name: NameInternalService, message: MessageInternalService},
	KindBadRequest:      {status: http.StatusBadRequest, name: NameBadRequest, message: MessageBadRequest},
	KindJWKSFetch:       {status: http.StatusInternalServerError, name: NameJWKSFetch, message: MessageJWKSFetch},
}

func (k Kind) describe() descriptor {
	if d, ok := descriptors[k]; ok {
		return d
	}
	return descriptors[KindInternalService]
}

// Kinds lists every member of the closed set.
func Kinds() []Kind {
	return []Kind{KindNotFound, KindUnauthorized, KindInternalService, KindBadRequest, KindJWKSFetch}
}

// StatusCode returns the HTTP status bound to the kind.
func (k Kind) StatusCode() int {
	return k.describe().status
}

// String returns the stable name clients see in the "name" field.
func (k Kind) String() string {
	return k.describe().name
}
