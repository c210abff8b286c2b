package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pookie-qa/pookie-runner/pkg/executor"
	"github.com/pookie-qa/pookie-runner/pkg/report"
)

// printUnifiedOutput prints detailed results, the summary table and the
// per-subject summary, all read back from the written report.
func printUnifiedOutput(outputDir string, result *executor.RunResult) error {
	reportIndex, err := report.ReadIndex(outputDir)
	if err != nil {
		return fmt.Errorf("could not load report: %w", err)
	}

	// 1. Flow-by-flow results with every command
	printDetailedFlowResults(outputDir, reportIndex)

	// 2. Summary table with a subject column
	printUnifiedSummaryTable(reportIndex, result)

	// 3. Per-subject stats
	printSubjectSummary(reportIndex)

	return nil
}

// formatSubjectLabel formats a flow's subject for display.
func formatSubjectLabel(subject string) string {
	if subject == "" {
		return "-"
	}
	return subject
}

// printDetailedFlowResults prints flow-by-flow results with all commands.
func printDetailedFlowResults(outputDir string, reportIndex *report.Index) {
	for i, flowEntry := range reportIndex.Flows {
		fmt.Printf("\n  %s[%d/%d]%s %s%s%s (%s) - Subject: %s\n",
			color(colorCyan), i+1, len(reportIndex.Flows), color(colorReset),
			color(colorBold), flowEntry.Name, color(colorReset),
			flowEntry.SourceFile, formatSubjectLabel(flowEntry.Subject))
		fmt.Println("  " + strings.Repeat("─", 60))

		flowDetail, err := report.ReadFlowDetail(outputDir, flowEntry)
		if err != nil {
			fmt.Printf("    (Could not load command details: %v)\n", err)
		} else {
			for _, cmd := range flowDetail.Commands {
				printCommand(cmd, 0)
			}
		}

		duration := int64(0)
		if flowEntry.Duration != nil {
			duration = *flowEntry.Duration
		}

		switch flowEntry.Status {
		case report.StatusPassed:
			fmt.Printf("%s✓ %s%s %s%s%s\n",
				color(colorGreen), color(colorReset), flowEntry.Name,
				color(colorGray), formatDuration(duration), color(colorReset))
		case report.StatusFailed:
			fmt.Printf("%s✗ %s%s %s%s%s\n",
				color(colorRed), color(colorReset), flowEntry.Name,
				color(colorGray), formatDuration(duration), color(colorReset))
			if flowEntry.Error != nil {
				fmt.Printf("  %s╰─%s %s\n", color(colorGray), color(colorReset), *flowEntry.Error)
			}
		case report.StatusSkipped:
			fmt.Printf("%s- %s%s %sskipped%s\n",
				color(colorCyan), color(colorReset), flowEntry.Name,
				color(colorGray), color(colorReset))
		}
	}
}

// printCommand prints a single command with proper indentation.
func printCommand(cmd report.Command, depth int) {
	indent := strings.Repeat("  ", 2+depth)

	description := cmd.Label
	if description == "" {
		description = cmd.Type
	}
	if description == "" && cmd.YAML != "" {
		description = cmd.YAML
	}

	duration := int64(0)
	if cmd.Duration != nil {
		duration = *cmd.Duration
	}

	isSlow := duration >= slowThresholdMs && !isCompoundCommand(description)

	switch cmd.Status {
	case report.StatusPassed:
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if isSlow {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		fmt.Printf("%s%s%s%s %s %s(%s)%s\n",
			indent, symbolColor, symbol, color(colorReset),
			description, durColor, formatDuration(duration), color(colorReset))
	case report.StatusSkipped, report.StatusPending:
		fmt.Printf("%s%s-%s %s\n", indent, color(colorGray), color(colorReset), description)
	default:
		fmt.Printf("%s%s✗%s %s (%s)\n",
			indent, color(colorRed), color(colorReset),
			description, formatDuration(duration))
		if cmd.Error != nil && cmd.Error.Message != "" {
			fmt.Printf("%s  %s╰─%s %s\n",
				indent, color(colorGray), color(colorReset), cmd.Error.Message)
		}
	}

	// Sub-commands of runFlow, repeat and retry
	for _, subCmd := range cmd.SubCommands {
		printCommand(subCmd, depth+1)
	}
}

// isCompoundCommand checks if a command is a compound command (runFlow, repeat, retry).
func isCompoundCommand(desc string) bool {
	return strings.HasPrefix(desc, "runFlow:") ||
		strings.HasPrefix(desc, "repeat:") ||
		strings.HasPrefix(desc, "retry:")
}

// printUnifiedSummaryTable prints the summary table with a subject column.
func printUnifiedSummaryTable(reportIndex *report.Index, result *executor.RunResult) {
	totalSteps, passedSteps, failedSteps, skippedSteps := stepTotals(result)

	fmt.Println()
	if passedSteps > 0 {
		fmt.Printf("  %s%d steps passing%s (%s)\n",
			color(colorGreen), passedSteps, color(colorReset), formatDuration(result.Duration))
	}
	if failedSteps > 0 {
		fmt.Printf("  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Printf("  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Println()

	tableWidth := 104
	fmt.Println(strings.Repeat("═", tableWidth))
	fmt.Printf("  %-30s %6s %7s %6s %6s %6s %10s  %s\n",
		"Flow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration", "Subject")
	fmt.Println(strings.Repeat("─", tableWidth))

	byID := make(map[string]*executor.FlowResult, len(result.FlowResults))
	for i := range result.FlowResults {
		byID[result.FlowResults[i].ID] = &result.FlowResults[i]
	}

	for _, flowEntry := range reportIndex.Flows {
		fr := byID[flowEntry.ID]
		if fr == nil {
			continue
		}

		status, statusColor := statusLabel(fr.Status)

		name := fr.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		fmt.Printf("  %-30s %s%6s%s %7d %6d %6d %6d %10s  %s\n",
			name, statusColor, status, color(colorReset),
			fr.StepsTotal, fr.StepsPassed, fr.StepsFailed, fr.StepsSkipped,
			formatDuration(fr.Duration), formatSubjectLabel(fr.Subject))
	}

	fmt.Println(strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.PassedFlows, result.TotalFlows)
	statusColor := color(colorGreen)
	if result.FailedFlows > 0 {
		statusColor = color(colorRed)
	}
	fmt.Printf("  %s%-30s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(result.Duration))
	fmt.Println(strings.Repeat("═", tableWidth))
}

func stepTotals(result *executor.RunResult) (total, passed, failed, skipped int) {
	for _, fr := range result.FlowResults {
		total += fr.StepsTotal
		passed += fr.StepsPassed
		failed += fr.StepsFailed
		skipped += fr.StepsSkipped
	}
	return total, passed, failed, skipped
}

func statusLabel(s report.Status) (string, string) {
	switch s {
	case report.StatusFailed:
		return "✗ FAIL", color(colorRed)
	case report.StatusSkipped:
		return "- SKIP", color(colorCyan)
	default:
		return "✓ PASS", color(colorGreen)
	}
}

// groupFlowsBySubject groups flows by PC1 id, keeping subject order stable.
func groupFlowsBySubject(flows []report.FlowEntry) ([]string, map[string][]report.FlowEntry) {
	grouped := make(map[string][]report.FlowEntry)
	var order []string

	for _, f := range flows {
		if f.Subject == "" {
			continue
		}
		if _, ok := grouped[f.Subject]; !ok {
			order = append(order, f.Subject)
		}
		grouped[f.Subject] = append(grouped[f.Subject], f)
	}
	sort.Strings(order)
	return order, grouped
}

// printSubjectSummary prints per-subject statistics. A run against a single
// subject prints nothing; the table already says it all.
func printSubjectSummary(reportIndex *report.Index) {
	order, grouped := groupFlowsBySubject(reportIndex.Flows)
	if len(order) < 2 {
		return
	}

	fmt.Println("\n\nSubject Summary")
	fmt.Println(strings.Repeat("─", 60))

	for _, subject := range order {
		flows := grouped[subject]
		passed, failed, skipped := 0, 0, 0
		for _, f := range flows {
			switch f.Status {
			case report.StatusPassed:
				passed++
			case report.StatusFailed:
				failed++
			case report.StatusSkipped:
				skipped++
			}
		}

		fmt.Printf("\nSubject: %s\n", subject)
		fmt.Printf("  Flows: %d • Passed: %s%d%s • Failed: %s%d%s • Skipped: %d\n",
			len(flows),
			color(colorGreen), passed, color(colorReset),
			color(colorRed), failed, color(colorReset),
			skipped)
	}

	fmt.Println()
}

// printSummary is the fallback summary when the report cannot be read.
func printSummary(result *executor.RunResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("═", 60))

	statusColor := color(colorGreen)
	if result.Status == report.StatusFailed {
		statusColor = color(colorRed)
	}
	fmt.Printf("  %sStatus:%s %s%s%s\n",
		color(colorBold), color(colorReset), statusColor, strings.ToUpper(string(result.Status)), color(colorReset))
	fmt.Printf("  Flows:    %d total, %s%d passed%s, %s%d failed%s, %d skipped\n",
		result.TotalFlows,
		color(colorGreen), result.PassedFlows, color(colorReset),
		color(colorRed), result.FailedFlows, color(colorReset),
		result.SkippedFlows)
	fmt.Printf("  Duration: %s\n", formatDuration(result.Duration))

	for _, fr := range result.FlowResults {
		if fr.Status != report.StatusFailed {
			continue
		}
		fmt.Printf("  %s✗%s %s [%s]: %s\n",
			color(colorRed), color(colorReset), fr.Name, formatSubjectLabel(fr.Subject), fr.Error)
	}
	fmt.Println(strings.Repeat("═", 60))
}
