package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task statistics and productivity insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.svc.Statistics(cmd.Context(), a.userID)
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Tasks"))
		fmt.Printf("  total: %d  todo: %d  in progress: %d  completed: %d  blocked: %d\n",
			stats.Total, stats.Todo, stats.InProgress, stats.Completed, stats.Blocked)
		fmt.Printf("  overdue: %d  completion rate: %.1f%%\n", stats.Overdue, stats.CompletionRate)

		if insights, _ := cmd.Flags().GetBool("insights"); insights {
			in := a.engine.Insights(cmd.Context(), stats)
			fmt.Println(titleStyle.Render("Insights"))
			fmt.Printf("  productivity score: %d  trend: %s\n", in.ProductivityScore, in.Trend)
			for _, line := range in.Insights {
				fmt.Println("  " + line)
			}
			for _, rec := range in.Recommendations {
				fmt.Println("  - " + rec)
			}
		}
		return nil
	},
}

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List overdue tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.svc.Overdue(cmd.Context(), a.userID, 0, 100)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("Nothing overdue.")
			return nil
		}
		for i := range tasks {
			fmt.Println(renderTaskLine(&tasks[i]))
		}
		return nil
	},
}

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List tasks due soon",
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		days, _ := cmd.Flags().GetInt("days")
		if days < 1 || days > 30 {
			return fmt.Errorf("days must be between 1 and 30")
		}

		tasks, err := a.svc.Upcoming(cmd.Context(), a.userID, days, 0, 100)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Printf("Nothing due in the next %d days.\n", days)
			return nil
		}
		for i := range tasks {
			fmt.Println(renderTaskLine(&tasks[i]))
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("insights", false, "Include AI productivity insights")
	upcomingCmd.Flags().Int("days", 7, "Look-ahead window in days")

	rootCmd.AddCommand(statsCmd, overdueCmd, upcomingCmd)
}
