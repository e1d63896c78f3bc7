// Package fl defines the wire-level protocol shared by the coordinator-side
// bridge, the edge responder and the result relay: operation kinds, command
// descriptors, result entries and blob locators.
package fl

import (
	"errors"
	"fmt"
	"strings"
)

// Op is the operation kind. It selects the mailbox sort key, the command
// shape and the result shape.
type Op string

const (
	OpGet      Op = "get"
	OpSet      Op = "set"
	OpFit      Op = "fit"
	OpEvaluate Op = "evaluate"
)

var errUnknownOp = errors.New("unknown operation kind")

// Method returns the command method name published on the command channel.
func (o Op) Method() string {
	switch o {
	case OpGet:
		return "get_parameters"
	case OpSet:
		return "set_parameters"
	case OpFit:
		return "fit"
	case OpEvaluate:
		return "evaluate"
	}

	return string(o)
}

// OpFromMethod maps a command method name back to its operation kind.
func OpFromMethod(method string) (Op, error) {
	switch method {
	case "get_parameters":
		return OpGet, nil
	case "set_parameters":
		return OpSet, nil
	case "fit":
		return OpFit, nil
	case "evaluate":
		return OpEvaluate, nil
	}

	return "", fmt.Errorf("%w: %q", errUnknownOp, method)
}

// Command is the descriptor published on the command channel, one per
// operation. It is immutable once published and has no identity beyond
// (participant, kind): a second command of the same kind overwrites the
// logical in-flight slot.
type Command struct {
	Method    string `json:"method"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	OutBucket string `json:"out_bucket,omitempty"`
	OutPrefix string `json:"out_prefix,omitempty"`
}

func (c Command) Validate() error {
	if _, err := OpFromMethod(c.Method); err != nil {
		return err
	}
	if c.Bucket == "" || c.Prefix == "" {
		return errors.New("command validation: bucket and prefix are required")
	}
	if c.Method == OpFit.Method() && (c.OutBucket == "" || c.OutPrefix == "") {
		return errors.New("command validation: fit requires out_bucket and out_prefix")
	}

	return nil
}

var (
	commandTopicTemplate   = "commands/client/%s/update"
	heartbeatTopicTemplate = "clients/%s/heartbeat"

	resultTopicTemplates = map[Op]string{
		OpGet:      "parameters/client/%s/sent",
		OpSet:      "set/client/%s/sent",
		OpFit:      "fit/client/%s/sent",
		OpEvaluate: "evaluate/client/%s/sent",
	}
)

// CommandTopic is the topic the bridge publishes commands to and the edge
// responder subscribes on.
func CommandTopic(participant string) string {
	return fmt.Sprintf(commandTopicTemplate, participant)
}

// ResultTopic is the topic the edge responder publishes a completion message
// to after executing an operation of the given kind.
func ResultTopic(kind Op, participant string) string {
	return fmt.Sprintf(resultTopicTemplates[kind], participant)
}

// ResultTopicFilter is the wildcard subscription pattern matching result
// messages of the given kind from any participant.
func ResultTopicFilter(kind Op) string {
	return fmt.Sprintf(resultTopicTemplates[kind], "+")
}

// OpFromResultTopic resolves the operation kind and participant from a
// concrete result topic.
func OpFromResultTopic(topic string) (Op, string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "client" || parts[3] != "sent" {
		return "", "", fmt.Errorf("unrecognized result topic %q", topic)
	}

	switch parts[0] {
	case "parameters":
		return OpGet, parts[2], nil
	case "set":
		return OpSet, parts[2], nil
	case "fit":
		return OpFit, parts[2], nil
	case "evaluate":
		return OpEvaluate, parts[2], nil
	}

	return "", "", fmt.Errorf("unrecognized result topic %q", topic)
}

func HeartbeatTopic(participant string) string {
	return fmt.Sprintf(heartbeatTopicTemplate, participant)
}
