package registry

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/pkg/config"
	"github.com/packdex/search-platform/pkg/errors"
)

var (
	packageNameRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	tagRE         = regexp.MustCompile(`^[a-z][a-z0-9]*:[a-z0-9._\-]+$`)
)

const (
	maxPackageNameLength = 64
	maxApiDocPages       = 1000
	maxDependencies      = 2000
	maxTags              = 200
)

// Validator checks incoming package documents against the registry limits
// before they are persisted or published.
type Validator struct {
	cfg config.RegistryConfig
}

func NewValidator(cfg config.RegistryConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateDocument returns an invalid-input error describing the first
// violation found, or nil when the document is acceptable.
func (v *Validator) ValidateDocument(doc *search.PackageDocument) error {
	if doc == nil {
		return errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "missing document")
	}
	if err := ValidateName(doc.Package); err != nil {
		return err
	}
	if v.cfg.MaxDescriptionChars > 0 && len(doc.Description) > v.cfg.MaxDescriptionChars {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"description exceeds %d characters", v.cfg.MaxDescriptionChars)
	}
	if v.cfg.MaxReadmeBytes > 0 && len(doc.Readme) > v.cfg.MaxReadmeBytes {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"readme exceeds %d bytes", v.cfg.MaxReadmeBytes)
	}
	if len(doc.ApiDocPages) > maxApiDocPages {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"too many api doc pages (%d > %d)", len(doc.ApiDocPages), maxApiDocPages)
	}
	for _, page := range doc.ApiDocPages {
		if page.RelativePath == "" {
			return errors.New(errors.ErrInvalidInput, http.StatusBadRequest,
				"api doc page with empty relative path")
		}
		if strings.Contains(page.RelativePath, "::") {
			return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
				"api doc page path %q contains reserved separator", page.RelativePath)
		}
	}
	if len(doc.Dependencies) > maxDependencies {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"too many dependencies (%d > %d)", len(doc.Dependencies), maxDependencies)
	}
	for dep, kind := range doc.Dependencies {
		if !packageNameRE.MatchString(dep) {
			return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
				"invalid dependency name %q", dep)
		}
		switch kind {
		case search.DependencyDirect, search.DependencyDev, search.DependencyTransitive:
		default:
			return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
				"invalid dependency type %q for %s", kind, dep)
		}
	}
	if len(doc.Tags) > maxTags {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"too many tags (%d > %d)", len(doc.Tags), maxTags)
	}
	for _, tag := range doc.Tags {
		if !tagRE.MatchString(tag) {
			return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
				"malformed tag %q", tag)
		}
	}
	if doc.GrantedPoints < 0 || doc.MaxPoints < 0 || doc.GrantedPoints > doc.MaxPoints {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"inconsistent pana points: %d/%d", doc.GrantedPoints, doc.MaxPoints)
	}
	if doc.PopularityScore < 0 || doc.PopularityScore > 1 {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"popularity score %v outside [0, 1]", doc.PopularityScore)
	}
	if doc.LikeCount < 0 {
		return errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "negative like count")
	}
	return nil
}

// ValidateName checks that a package name is well formed.
func ValidateName(name string) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "missing package name")
	}
	if len(name) > maxPackageNameLength {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"package name exceeds %d characters", maxPackageNameLength)
	}
	if !packageNameRE.MatchString(name) {
		return fmt.Errorf("%w: package name %q must match %s",
			errors.ErrInvalidInput, name, packageNameRE.String())
	}
	return nil
}
