package schema

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/schollz/closestmatch"

	"github.com/Ramsey-B/fern/pkg/models"
)

// MappingError reports that the required fields of a kind could not be
// located by any strategy. A run that hits it produces no records.
type MappingError struct {
	Kind        models.Kind
	Missing     []Field
	Suggestions map[Field]string
	Message     string
}

func NewMappingError(kind models.Kind, missing []Field) *MappingError {
	return &MappingError{
		Kind:        kind,
		Missing:     missing,
		Suggestions: map[Field]string{},
		Message:     "no recognizable schema",
	}
}

func (e *MappingError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("kind '%s': %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("kind '%s': %s: missing %s", e.Kind, e.Message, strings.Join(e.missingNames(), ", "))
}

func (e *MappingError) missingNames() []string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return names
}

// suggest attaches the closest header cell to every missing field.
func (e *MappingError) suggest(spec *KindSpec, unmatched []string) *MappingError {
	if len(unmatched) == 0 {
		return e
	}
	cm := closestmatch.New(unmatched, []int{2, 3})
	for _, name := range e.Missing {
		f, ok := spec.Field(name)
		if !ok || len(f.Labels) == 0 {
			continue
		}
		if guess := cm.Closest(f.Labels[0]); guess != "" {
			e.Suggestions[name] = guess
		}
	}
	return e
}

func (e *MappingError) ToHTTPError() *httperror.HTTPError {
	suggestions := make([]string, 0, len(e.Suggestions))
	for f, s := range e.Suggestions {
		suggestions = append(suggestions, fmt.Sprintf("%s=%s", f, s))
	}
	sort.Strings(suggestions)

	return httperror.NewHTTPError(http.StatusUnprocessableEntity, e.Error()).
		AddMetaValue("kind", string(e.Kind)).
		AddMetaValue("missing_fields", strings.Join(e.missingNames(), ",")).
		AddMetaValue("suggestions", strings.Join(suggestions, ","))
}

func IsMappingError(err error) bool {
	var mappingErr *MappingError
	return errors.As(err, &mappingErr)
}
