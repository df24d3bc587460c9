package unit

import (
	"fmt"

	"github.com/cory-johannsen/vanguard/internal/game/geom"
)

// CommandKind discriminates the Command union.
type CommandKind int

const (
	CommandAttack CommandKind = iota + 1
	CommandMove
	CommandStop
	CommandGather
)

// String returns a human-readable command label.
func (k CommandKind) String() string {
	switch k {
	case CommandAttack:
		return "attack"
	case CommandMove:
		return "move"
	case CommandStop:
		return "stop"
	case CommandGather:
		return "gather"
	default:
		return "unknown"
	}
}

// Command is an order for one unit.
//
// Invariant: Attack carries exactly one of TargetTag or TargetPos; Move carries
// TargetPos; Gather carries TargetTag; Stop carries neither.
type Command struct {
	Kind      CommandKind
	UnitTag   string
	TargetTag string
	TargetPos *geom.Point
}

// Attack returns an attack command against the unit with targetTag.
func Attack(unitTag, targetTag string) Command {
	return Command{Kind: CommandAttack, UnitTag: unitTag, TargetTag: targetTag}
}

// AttackMove returns an attack command toward a point.
func AttackMove(unitTag string, p geom.Point) Command {
	return Command{Kind: CommandAttack, UnitTag: unitTag, TargetPos: &p}
}

// Move returns a move command to p.
func Move(unitTag string, p geom.Point) Command {
	return Command{Kind: CommandMove, UnitTag: unitTag, TargetPos: &p}
}

// Stop returns a stop command.
func Stop(unitTag string) Command {
	return Command{Kind: CommandStop, UnitTag: unitTag}
}

// Gather returns a gather command on the resource with targetTag.
func Gather(unitTag, targetTag string) Command {
	return Command{Kind: CommandGather, UnitTag: unitTag, TargetTag: targetTag}
}

// String returns a compact description used in logs.
func (c Command) String() string {
	switch {
	case c.TargetPos != nil:
		return fmt.Sprintf("%s %s -> (%.2f, %.2f)", c.Kind, c.UnitTag, c.TargetPos.X, c.TargetPos.Y)
	case c.TargetTag != "":
		return fmt.Sprintf("%s %s -> %s", c.Kind, c.UnitTag, c.TargetTag)
	default:
		return fmt.Sprintf("%s %s", c.Kind, c.UnitTag)
	}
}
