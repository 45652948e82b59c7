package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	switchTypeName    = "bool"
	switchBareLiteral = "true"
	errorSwitchValue  = "--%s expects yes/no, on/off, true/false or 1/0, got %q"
)

var switchLiterals = map[string]bool{
	"true": true, "yes": true, "on": true, "1": true,
	"false": false, "no": false, "off": false, "0": false,
}

func parseSwitch(text string) (bool, bool) {
	enabled, known := switchLiterals[strings.ToLower(strings.TrimSpace(text))]
	return enabled, known
}

// switchValue is an on/off flag that can be given bare (--copy) or with a
// literal (--copy no).
type switchValue struct {
	enabled *bool
	name    string
}

func (value switchValue) Set(text string) error {
	enabled, known := parseSwitch(text)
	if !known {
		return fmt.Errorf(errorSwitchValue, value.name, text)
	}
	*value.enabled = enabled
	return nil
}

func (value switchValue) String() string {
	if value.enabled == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(*value.enabled)
}

func (value switchValue) Type() string {
	return switchTypeName
}

func addSwitch(flagSet *pflag.FlagSet, enabled *bool, name string, usage string) {
	flag := flagSet.VarPF(switchValue{enabled: enabled, name: name}, name, "", usage)
	flag.NoOptDefVal = switchBareLiteral
}

// foldSwitchArguments rewrites "--name literal" as "--name=literal" for the
// switches of the invoked subcommand. pflag never consumes the next argument
// of a flag that has a bare default.
func foldSwitchArguments(rootCommand *cobra.Command, arguments []string) []string {
	target, _, findErr := rootCommand.Find(arguments)
	if findErr != nil || target == nil {
		return arguments
	}
	folded := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		if argument == "--" {
			return append(folded, arguments[index:]...)
		}
		name, isLong := strings.CutPrefix(argument, "--")
		if isLong && index+1 < len(arguments) && isSwitch(target, name) {
			if _, known := parseSwitch(arguments[index+1]); known {
				folded = append(folded, argument+"="+arguments[index+1])
				index++
				continue
			}
		}
		folded = append(folded, argument)
	}
	return folded
}

func isSwitch(command *cobra.Command, name string) bool {
	flag := command.Flags().Lookup(name)
	if flag == nil {
		return false
	}
	_, matches := flag.Value.(switchValue)
	return matches
}
