package validation

import (
	"strings"
	"unicode/utf8"

	"recoveryhub/circles/internal/model"
)

type CirclePayload struct {
	Name                 string  `json:"name"`
	Description          string  `json:"description"`
	Type                 *string `json:"type"`
	Visibility           *string `json:"visibility"`
	MaxMembers           *int    `json:"max_members"`
	AllowMultipleInvites *bool   `json:"allow_multiple_invites"`
}

type CircleValue struct {
	Name                 string
	Description          string
	Type                 model.CircleType
	Visibility           model.Visibility
	MaxMembers           int
	AllowMultipleInvites bool
}

// NormalizeCircle validates a circle creation payload. Absent type and
// visibility fall back to general/private; maxMembers above the ceiling is
// clamped while values below the minimum are rejected.
func NormalizeCircle(p CirclePayload) Result[CircleValue] {
	var errs errorList
	v := CircleValue{
		Name:                 strings.TrimSpace(p.Name),
		Description:          strings.TrimSpace(p.Description),
		Type:                 model.CircleTypeGeneral,
		Visibility:           model.VisibilityPrivate,
		MaxMembers:           DefaultMaxMembers,
		AllowMultipleInvites: true,
	}

	checkCircleName(v.Name, &errs)
	checkCircleDescription(v.Description, &errs)

	if t, ok := optionalString(p.Type); ok {
		if ct := model.CircleType(t); ct.Valid() {
			v.Type = ct
		} else {
			errs.add("type", "type must be one of %s", circleTypeList())
		}
	}
	if vis, ok := optionalString(p.Visibility); ok {
		if cv := model.Visibility(vis); cv.Valid() {
			v.Visibility = cv
		} else {
			errs.add("visibility", "visibility must be public or private")
		}
	}
	if p.MaxMembers != nil {
		v.MaxMembers = clampMaxMembers(*p.MaxMembers, &errs)
	}
	if p.AllowMultipleInvites != nil {
		v.AllowMultipleInvites = *p.AllowMultipleInvites
	}

	return result(v, errs)
}

// CircleUpdatePayload carries only the fields a caller wants to change.
type CircleUpdatePayload struct {
	Name                 *string `json:"name"`
	Description          *string `json:"description"`
	Type                 *string `json:"type"`
	Visibility           *string `json:"visibility"`
	MaxMembers           *int    `json:"max_members"`
	AllowMultipleInvites *bool   `json:"allow_multiple_invites"`
	RegenerateSlug       bool    `json:"regenerate_slug"`
}

type CircleUpdate struct {
	Name                 *string
	Description          *string
	Type                 *model.CircleType
	Visibility           *model.Visibility
	MaxMembers           *int
	AllowMultipleInvites *bool
	RegenerateSlug       bool
}

// Empty reports whether the update changes nothing.
func (u CircleUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Type == nil && u.Visibility == nil &&
		u.MaxMembers == nil && u.AllowMultipleInvites == nil && !u.RegenerateSlug
}

// NormalizeCircleUpdate applies the creation rules to supplied fields only.
func NormalizeCircleUpdate(p CircleUpdatePayload) Result[CircleUpdate] {
	var errs errorList
	u := CircleUpdate{
		AllowMultipleInvites: p.AllowMultipleInvites,
		RegenerateSlug:       p.RegenerateSlug,
	}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		checkCircleName(name, &errs)
		u.Name = &name
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		checkCircleDescription(desc, &errs)
		u.Description = &desc
	}
	if p.Type != nil {
		t := model.CircleType(strings.TrimSpace(*p.Type))
		if t.Valid() {
			u.Type = &t
		} else {
			errs.add("type", "type must be one of %s", circleTypeList())
		}
	}
	if p.Visibility != nil {
		vis := model.Visibility(strings.TrimSpace(*p.Visibility))
		if vis.Valid() {
			u.Visibility = &vis
		} else {
			errs.add("visibility", "visibility must be public or private")
		}
	}
	if p.MaxMembers != nil {
		n := clampMaxMembers(*p.MaxMembers, &errs)
		u.MaxMembers = &n
	}

	return result(u, errs)
}

func checkCircleName(name string, errs *errorList) {
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		errs.add("name", "name is required")
	case n < CircleNameMin:
		errs.add("name", "name must be at least %d characters", CircleNameMin)
	case n > CircleNameMax:
		errs.add("name", "name must be at most %d characters", CircleNameMax)
	}
}

func checkCircleDescription(desc string, errs *errorList) {
	if utf8.RuneCountInString(desc) > CircleDescriptionMax {
		errs.add("description", "description must be at most %d characters", CircleDescriptionMax)
	}
}

func clampMaxMembers(n int, errs *errorList) int {
	switch {
	case n < CircleMinMembers:
		errs.add("max_members", "max_members must be at least %d", CircleMinMembers)
		return CircleMinMembers
	case n > CircleMaxMembers:
		return CircleMaxMembers
	}
	return n
}

func circleTypeList() string {
	names := make([]string, len(model.CircleTypes))
	for i, t := range model.CircleTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
