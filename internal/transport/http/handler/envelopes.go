package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gigmarket-api/internal/domain"
	"github.com/gigmarket-api/internal/pkg/validate"
)

const maxBodyBytes = 1 << 20

// UserPage is the data of a paginated user listing.
type UserPage struct {
	Users      []domain.User `json:"users"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// decodeBody reads a JSON body into dst and runs its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewError(domain.KindBadRequest, "Request body is required")
		}
		return domain.WrapError(domain.KindBadRequest, "Invalid request body", err)
	}
	if err := validate.Struct(dst); err != nil {
		return domain.WrapError(domain.KindBadRequest, err.Error(), err)
	}
	return nil
}
