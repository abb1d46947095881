package telegram

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownCommand is returned for callback data this bot never produced.
var ErrUnknownCommand = errors.New("unknown command")

// CommandKind enumerates every menu action the bot understands.
type CommandKind int

const (
	CmdMainMenu CommandKind = iota + 1
	CmdSubjectsMenu
	CmdRunSubject
	CmdRandomMenu
	CmdRunRandom
	CmdFullExamMenu
	CmdRunFullExam
	CmdResultsMenu
	CmdResultSubjectsMenu
	CmdResultSubject
	CmdResultRandom
	CmdResultFull
	CmdLeaderboard
	CmdSettingsMenu
	CmdToggleNegative
	CmdCycleSummaryDelay
)

var commandTags = map[CommandKind]string{
	CmdMainMenu:           "back_main",
	CmdSubjectsMenu:       "menu_subjects",
	CmdRunSubject:         "subject_run",
	CmdRandomMenu:         "menu_random",
	CmdRunRandom:          "random",
	CmdFullExamMenu:       "menu_full_exam",
	CmdRunFullExam:        "full",
	CmdResultsMenu:        "menu_results",
	CmdResultSubjectsMenu: "results_subjects",
	CmdResultSubject:      "result_subject",
	CmdResultRandom:       "result_random",
	CmdResultFull:         "result_full",
	CmdLeaderboard:        "menu_leaderboard",
	CmdSettingsMenu:       "menu_settings",
	CmdToggleNegative:     "toggle_negative",
	CmdCycleSummaryDelay:  "set_summary_delay",
}

var kindsByTag = func() map[string]CommandKind {
	out := make(map[string]CommandKind, len(commandTags))
	for kind, tag := range commandTags {
		out[tag] = kind
	}
	return out
}()

// subjectKeyLen keeps subject callbacks far below Telegram's 64-byte limit
// however deeply subject files are nested.
const subjectKeyLen = 12

// Command is a parsed menu action. Subject commands carry SubjectKey once
// parsed; the bot resolves it back to a subject name. Count is set for the
// random and full-exam runs.
type Command struct {
	Kind       CommandKind
	Subject    string
	SubjectKey string
	Count      int
}

// SubjectKey is the short form of a subject name used in callback data.
func SubjectKey(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:])[:subjectKeyLen]
}

func (k CommandKind) takesSubject() bool {
	return k == CmdRunSubject || k == CmdResultSubject
}

func (k CommandKind) takesCount() bool {
	return k == CmdRunRandom || k == CmdRunFullExam
}

// Data encodes the command as inline-button callback data.
func (c Command) Data() string {
	tag := commandTags[c.Kind]
	switch {
	case c.Kind.takesSubject():
		key := c.SubjectKey
		if key == "" {
			key = SubjectKey(c.Subject)
		}
		return tag + ":" + key
	case c.Kind.takesCount():
		return tag + ":" + strconv.Itoa(c.Count)
	default:
		return tag
	}
}

// ParseCommand decodes callback data produced by Command.Data.
func ParseCommand(data string) (Command, error) {
	tag, arg, hasArg := strings.Cut(data, ":")
	kind, ok := kindsByTag[tag]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, data)
	}
	cmd := Command{Kind: kind}
	switch {
	case kind.takesSubject():
		if !hasArg || !validSubjectKey(arg) {
			return Command{}, fmt.Errorf("%w: %q needs a subject key", ErrUnknownCommand, data)
		}
		cmd.SubjectKey = arg
	case kind.takesCount():
		n, err := strconv.Atoi(arg)
		if !hasArg || err != nil || n <= 0 {
			return Command{}, fmt.Errorf("%w: %q needs a positive count", ErrUnknownCommand, data)
		}
		cmd.Count = n
	case hasArg:
		return Command{}, fmt.Errorf("%w: %q takes no argument", ErrUnknownCommand, data)
	}
	return cmd, nil
}

func validSubjectKey(key string) bool {
	if len(key) != subjectKeyLen {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}
