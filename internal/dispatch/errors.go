package dispatch

import (
	"fmt"

	"github.com/pkg/errors"

	"strata/internal/environment"
)

// ErrInvalidRequest is returned when a request variant reaches a layer
// that cannot service it — a programmer error, not a recoverable fault.
var ErrInvalidRequest = errors.New("dispatch: invalid request for this layer")

// untrackedQueryResponse renders the Untracked(type) fault the way every
// TypeQuery subquery must: a TypeQueryResponse whose text begins
// "Error: Type ... was not found in the type order.".
func untrackedQueryResponse(u environment.Untracked) TypeQueryResponse {
	return TypeQueryResponse{Text: fmt.Sprintf("Error: Type `%s` was not found in the type order.", u.Type)}
}

// noClassDefinitionAttributes renders the Attributes/Methods lookup
// failure string, which carries the "Error: " prefix.
func noClassDefinitionAttributes(t string) string {
	return fmt.Sprintf("Error: No class definition found for %s", t)
}

// noClassDefinitionSuperclasses renders the Superclasses lookup failure
// string, which omits the "Error: " prefix — preserved verbatim as an
// asymmetry carried over from the original behavior.
func noClassDefinitionSuperclasses(t string) string {
	return fmt.Sprintf("No class definition found for %s", t)
}
