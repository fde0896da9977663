package validation

import "time"

const (
	CircleNameMin        = 3
	CircleNameMax        = 80
	CircleDescriptionMax = 600
	CircleMinMembers     = 2
	CircleMaxMembers     = 50
	DefaultMaxMembers    = 12

	InviteMaxUses         = 50
	DefaultInviteMaxUses  = 10
	InviteMaxLifetimeDays = 30
	InviteMaxLifetime     = InviteMaxLifetimeDays * 24 * time.Hour
	PostContentMax        = 2000
	CommentContentMax     = 750
	CommentParentIDMax    = 64
	LinkedSnapshotMax     = 2000
	PostMaxTags           = 5
	StepTagMin            = 1
	StepTagMax            = 12
)
