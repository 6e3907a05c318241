package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/bcnelson/activation-key-server/internal/domain"
)

// keyTypeETag derives an ETag from a key type's current contents.
// Format: "keytype-<name>-<content hash prefix>"
func keyTypeETag(kt *domain.KeyType) string {
	price := "null"
	if kt.Price != nil {
		price = fmt.Sprintf("%g", *kt.Price)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%s|%t",
		kt.Name, kt.DurationDays, kt.Description, price, kt.IsAvailable)))
	return fmt.Sprintf(`"keytype-%s-%s"`, kt.Name, hex.EncodeToString(sum[:8]))
}

// setETagHeader sets the ETag header on the response.
func setETagHeader(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
}

// checkIfMatch checks if the If-Match header matches the current ETag.
// Returns true if:
//   - No If-Match header is present (ETag checking is optional)
//   - The If-Match header matches the current ETag
func checkIfMatch(r *http.Request, etag string) bool {
	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		return true
	}
	return ifMatch == etag || ifMatch == "*"
}

// respondPreconditionFailed writes a 412 Precondition Failed response.
func respondPreconditionFailed(w http.ResponseWriter, r *http.Request, etag string) {
	setETagHeader(w, etag)
	respondJSON(w, r, http.StatusPreconditionFailed, &domain.Response{
		Success: false,
		Message: "Resource has been modified",
		Data:    map[string]string{"current_etag": etag},
	})
}
