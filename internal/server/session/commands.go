package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
)

// Command trigger characters: a chat line starting with either is a
// command; everything else is plain chat.
const triggers = ":;"

// Announcement lifetimes.
const (
	announceDuration   = 5 * time.Second
	jailNoticeDuration = 3 * time.Second
	ffNoticeDuration   = 2 * time.Second
)

const banNotice = "YOU HAVE BEEN PERMANENTLY BANNED FROM THIS MULTIVERSE INSTANCE."

type command struct {
	name    string
	usage   string
	desc    string
	handler func(s *Session, args []string)
}

// The command set is closed and permissive: unknown names and unparsable
// numeric arguments change nothing. Every caller implicitly holds full
// authority; deployments must gate destructive commands (kick, ban) behind
// their own authorization boundary before lines reach the session.
var commands []command

func init() {
	commands = []command{
		{name: "speed", usage: ":speed <n>", desc: "Set movement speed to n/10", handler: cmdSpeed},
		{name: "jump", usage: ":jump <n>", desc: "Set jump power to n/10", handler: cmdJumpPower},
		{name: "jumppower", usage: ":jumppower <n>", desc: "Set jump power to n/10", handler: cmdJumpPower},
		{name: "fly", usage: ":fly", desc: "Enable flight", handler: cmdFly},
		{name: "unfly", usage: ":unfly", desc: "Disable flight", handler: cmdUnfly},
		{name: "invisible", usage: ":invisible", desc: "Hide the avatar", handler: cmdInvisible},
		{name: "visible", usage: ":visible", desc: "Show the avatar", handler: cmdVisible},
		{name: "size", usage: ":size <n>", desc: "Set uniform avatar scale", handler: cmdSize},
		{name: "tp", usage: ":tp <n>", desc: "Teleport high above the origin", handler: cmdTp},
		{name: "kill", usage: ":kill", desc: "Respawn at the origin", handler: cmdKill},
		{name: "freeze", usage: ":freeze", desc: "Freeze the avatar in place", handler: cmdFreeze},
		{name: "unfreeze", usage: ":unfreeze", desc: "Unfreeze the avatar", handler: cmdUnfreeze},
		{name: "glow", usage: ":glow", desc: "Add an emissive highlight", handler: cmdGlow},
		{name: "unglow", usage: ":unglow", desc: "Remove the emissive highlight", handler: cmdUnglow},
		{name: "announce", usage: ":announce <message>", desc: "Broadcast an announcement", handler: cmdAnnounce},
		{name: "jail", usage: ":jail", desc: "Jail the avatar", handler: cmdJail},
		{name: "kick", usage: ":kick", desc: "End the session", handler: cmdKick},
		{name: "ban", usage: ":ban", desc: "End the session permanently", handler: cmdBan},
		{name: "ff", usage: ":ff", desc: "Cosmetic force field", handler: cmdFF},
	}
}

// Result describes how one chat line was interpreted. Unknown commands are
// accepted without effect; Known lets callers observe that leniency.
type Result struct {
	Command bool
	Known   bool
	Name    string
}

// handleLine interprets one raw chat line: sanitize and echo it, then, if it
// carries a trigger prefix, dispatch the command and acknowledge it.
func (s *Session) handleLine(raw string) Result {
	line := trimmed(raw)
	if line == "" {
		return Result{}
	}

	s.emit(ChatRecord{Speaker: s.player, Text: s.sanitize(line), Kind: ChatNormal})

	if !strings.ContainsRune(triggers, rune(line[0])) {
		return Result{}
	}

	res := s.dispatch(line[1:])
	if !res.Known {
		s.log.WithField("command", res.Name).Debug("unknown command ignored")
	}
	s.emit(ChatRecord{Speaker: "System", Text: "Command recognized: " + line, Kind: ChatSystem})
	return res
}

// dispatch tokenizes the command body and runs its handler. The name is
// case-insensitive; the rest of the tokens go to the handler untouched.
func (s *Session) dispatch(body string) Result {
	parts := strings.Fields(body)
	if len(parts) == 0 {
		return Result{Command: true}
	}
	name := strings.ToLower(parts[0])
	for _, cmd := range commands {
		if cmd.name == name {
			cmd.handler(s, parts[1:])
			return Result{Command: true, Known: true, Name: name}
		}
	}
	return Result{Command: true, Name: name}
}

// numArg parses the first argument as a number. A missing or unparsable
// argument reports false and the command's numeric effect is skipped.
func numArg(args []string) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func cmdSpeed(s *Session, args []string) {
	if v, ok := numArg(args); ok {
		s.ctrl.SetSpeed(v / 10)
	}
}

func cmdJumpPower(s *Session, args []string) {
	if v, ok := numArg(args); ok {
		s.ctrl.SetJumpPower(v / 10)
	}
}

func cmdFly(s *Session, _ []string)   { s.ctrl.SetFlying(true) }
func cmdUnfly(s *Session, _ []string) { s.ctrl.SetFlying(false) }

func cmdInvisible(s *Session, _ []string) { s.ctrl.SetVisible(false) }
func cmdVisible(s *Session, _ []string)   { s.ctrl.SetVisible(true) }

func cmdSize(s *Session, args []string) {
	if v, ok := numArg(args); ok {
		// SetScale rejects non-positive values; the command is a no-op then.
		s.ctrl.SetScale(v)
	}
}

// cmdTp requires a numeric argument but always lands at the fixed spot high
// above the origin.
func cmdTp(s *Session, args []string) {
	if _, ok := numArg(args); ok {
		s.ctrl.Teleport(entity.Vec3{Y: 200})
	}
}

func cmdKill(s *Session, _ []string) { s.ctrl.Reset() }

func cmdFreeze(s *Session, _ []string)   { s.ctrl.SetFrozen(true) }
func cmdUnfreeze(s *Session, _ []string) { s.ctrl.SetFrozen(false) }

func cmdGlow(s *Session, _ []string)   { s.ctrl.SetGlowing(true) }
func cmdUnglow(s *Session, _ []string) { s.ctrl.SetGlowing(false) }

func cmdAnnounce(s *Session, args []string) {
	text := strings.ToUpper(strings.Join(args, " "))
	if text == "" {
		return
	}
	s.setAnnouncement(text, announceDuration)
}

func cmdJail(s *Session, _ []string) {
	s.ctrl.Teleport(entity.Vec3{Y: 10})
	s.ctrl.SetFrozen(true)
	s.setAnnouncement("YOU HAVE BEEN JAILED BY ADMIN", jailNoticeDuration)
}

func cmdKick(s *Session, _ []string) {
	s.Close()
}

func cmdBan(s *Session, _ []string) {
	s.emit(ChatRecord{Speaker: "System", Text: banNotice, Kind: ChatSystem})
	s.Close()
}

func cmdFF(s *Session, _ []string) {
	s.setAnnouncement("FORCE FIELD ACTIVATED", ffNoticeDuration)
}
