package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// confirmInput is swapped out in tests
var confirmInput io.Reader = os.Stdin

func printHeader(title string) {
	fmt.Println()
	color.Cyan("═══════════════════════════════════════════════════════")
	color.Cyan("  %s", title)
	color.Cyan("═══════════════════════════════════════════════════════")
	fmt.Println()
}

func printInfo(format string, args ...interface{}) {
	fmt.Printf("ℹ️  "+format+"\n", args...)
}

func printSuccess(format string, args ...interface{}) {
	color.Green("✅ "+format, args...)
}

func printWarning(format string, args ...interface{}) {
	color.Yellow("⚠️  "+format, args...)
}

func printErrorMsg(format string, args ...interface{}) {
	color.Red("❌ "+format, args...)
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

// confirm asks the operator a yes/no question, defaulting to no.
// When stdin is not a terminal the prompt auto-declines, so a scripted
// invocation can never destroy anything by accident.
func confirm(prompt string) bool {
	if confirmInput == os.Stdin && !term.IsTerminal(int(os.Stdin.Fd())) {
		printWarning("stdin is not a terminal, declining: %s", prompt)
		return false
	}

	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(confirmInput)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
