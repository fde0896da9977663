package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/pkg/richtext"
)

var tagPattern = regexp.MustCompile(`(?i)^[a-z0-9][a-z0-9-]{0,22}[a-z0-9]?$`)

// Validator normalizes authored content. It is safe for concurrent use.
type Validator struct {
	sanitizer richtext.Sanitizer
}

func NewValidator(sanitizer richtext.Sanitizer) *Validator {
	return &Validator{sanitizer: sanitizer}
}

type LinkedSourcePayload struct {
	SourceType string `json:"source_type"`
	EntryID    string `json:"entry_id"`
	Snapshot   string `json:"snapshot"`
}

type PostPayload struct {
	Type         *string              `json:"type"`
	Content      string               `json:"content"`
	StepTag      *int                 `json:"step_tag"`
	Tags         []string             `json:"tags"`
	LinkedSource *LinkedSourcePayload `json:"linked_source"`
}

type PostValue struct {
	Type         model.PostType
	Content      string
	PlainText    string
	StepTag      *int
	Tags         []string
	LinkedSource *model.LinkedSource
}

// NormalizePost sanitizes the body and checks the plain-text length, so
// markup never counts against the limit.
func (v *Validator) NormalizePost(p PostPayload) Result[PostValue] {
	var errs errorList
	out := PostValue{Type: model.PostTypeShare, Tags: []string{}}

	if t, ok := optionalString(p.Type); ok {
		if pt := model.PostType(t); pt.Valid() {
			out.Type = pt
		} else {
			errs.add("type", "type must be one of share, step-experience, linked-entry")
		}
	}

	out.Content, out.PlainText = v.richText("content", p.Content, PostContentMax, true, &errs)

	if p.StepTag != nil {
		if tag := *p.StepTag; tag < StepTagMin || tag > StepTagMax {
			errs.add("step_tag", "step_tag must be between %d and %d", StepTagMin, StepTagMax)
		} else {
			out.StepTag = &tag
		}
	}

	out.Tags = normalizeTags(p.Tags, &errs)
	out.LinkedSource = v.linkedSource(p.LinkedSource, &errs)

	switch out.Type {
	case model.PostTypeStepExperience:
		if p.StepTag == nil {
			errs.add("step_tag", "step_tag is required for step-experience posts")
		}
	case model.PostTypeLinkedEntry:
		if out.LinkedSource == nil && !hasLinkedSourceError(errs) {
			errs.add("linked_source", "linked_source is required for linked-entry posts")
		}
	case model.PostTypeShare:
	}

	return result(out, errs)
}

type CommentPayload struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parent_id"`
}

type CommentValue struct {
	Content   string
	PlainText string
	ParentID  *string
}

func (v *Validator) NormalizeComment(p CommentPayload) Result[CommentValue] {
	var errs errorList
	out := CommentValue{}
	out.Content, out.PlainText = v.richText("content", p.Content, CommentContentMax, true, &errs)
	if id, ok := optionalString(p.ParentID); ok {
		if utf8.RuneCountInString(id) > CommentParentIDMax {
			errs.add("parent_id", "parent_id must be at most %d characters", CommentParentIDMax)
		} else {
			out.ParentID = &id
		}
	}
	return result(out, errs)
}

func (v *Validator) richText(field, raw string, limit int, required bool, errs *errorList) (string, string) {
	markup := richtext.NewlinesToBreaks(v.sanitizer.SanitizeRichText(raw))
	plain := v.sanitizer.StripHTMLToText(markup)
	n := utf8.RuneCountInString(plain)
	switch {
	case n == 0 && required:
		errs.add(field, "%s is required", field)
	case n > limit:
		errs.add(field, "%s must be at most %d characters", field, limit)
	}
	return markup, plain
}

// normalizeTags lowercases and dedupes tags, keeping the first PostMaxTags
// valid ones. Malformed tags are reported even past the limit.
func normalizeTags(raw []string, errs *errorList) []string {
	tags := make([]string, 0, PostMaxTags)
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !tagPattern.MatchString(t) {
			errs.add("tags", "invalid tag %q", t)
			continue
		}
		t = strings.ToLower(t)
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if len(tags) < PostMaxTags {
			tags = append(tags, t)
		}
	}
	return tags
}

func (v *Validator) linkedSource(p *LinkedSourcePayload, errs *errorList) *model.LinkedSource {
	if p == nil {
		return nil
	}
	sourceType := strings.TrimSpace(p.SourceType)
	entryID := strings.TrimSpace(p.EntryID)
	if sourceType == "" {
		if entryID != "" {
			errs.add("linked_source.source_type", "source_type is required")
		}
		return nil
	}

	st := model.SourceType(sourceType)
	if !st.Valid() {
		errs.add("linked_source.source_type", "source_type must be one of journal, step4, step8, step9")
	}
	if entryID == "" {
		errs.add("linked_source.entry_id", "entry_id is required")
	}
	snapshot, _ := v.richText("linked_source.snapshot", p.Snapshot, LinkedSnapshotMax, false, errs)
	if !st.Valid() || entryID == "" {
		return nil
	}
	return &model.LinkedSource{SourceType: st, EntryID: entryID, Snapshot: snapshot}
}

func hasLinkedSourceError(errs errorList) bool {
	for _, e := range errs {
		if strings.HasPrefix(e.Field, "linked_source") {
			return true
		}
	}
	return false
}
