package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var scheduleHeaders = []string{"ID", "POST_ID", "PUBLISH_TIME", "STATUS", "RETRIES", "EXHAUSTED", "LAST_ERROR"}

func scheduleRow(s ScheduleResponse) []string {
	return []string{
		s.ID, s.PostID, s.PublishTime, s.Status,
		strconv.Itoa(s.RetryCount), strconv.FormatBool(s.Exhausted), s.LastError,
	}
}

func scheduleRows(schedules []ScheduleResponse) [][]string {
	rows := make([][]string, len(schedules))
	for i, s := range schedules {
		rows[i] = scheduleRow(s)
	}
	return rows
}

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage post schedules",
	}

	cmd.AddCommand(
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleListCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleTriggerCmd(clientFn, outputFn),
		newScheduleAttemptsCmd(clientFn, outputFn),
	)

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "create CAMPAIGN_ID",
		Short: "Distribute campaign posts over the campaign window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.CreateCampaignSchedule(args[0], platform)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Created %d schedules", len(schedules)))
			out.Print(scheduleHeaders, scheduleRows(schedules), schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "Platform (TWITTER, INSTAGRAM, TIKTOK, FACEBOOK, LINKEDIN)")

	return cmd
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list CAMPAIGN_ID",
		Short: "List schedules of all campaign posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListCampaignSchedules(args[0])
			if err != nil {
				return err
			}

			out.Print(scheduleHeaders, scheduleRows(schedules), schedules)
			return nil
		},
	}
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show POST_ID",
		Short: "Show the latest schedule of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetPostSchedule(args[0])
			if err != nil {
				return err
			}

			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var at string
	var timezone string

	cmd := &cobra.Command{
		Use:   "update POST_ID",
		Short: "Reschedule a post (resets status and retries)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.UpdatePostSchedule(args[0], UpdateScheduleRequest{
				Timestamp: at,
				Timezone:  timezone,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Post rescheduled to %s", schedule.PublishTime))
			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Wall-clock time, e.g. '2026-02-01T10:00' (required)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone (default: brand timezone)")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

func newScheduleTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Process due and retryable schedules now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if async {
				if err := client.EnqueueTrigger(); err != nil {
					return err
				}
				out.Success("Trigger queued")
				return nil
			}

			resp, err := client.Trigger()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Processed %d: %d succeeded, %d failed",
				resp.Processed, resp.Succeeded, resp.Failed))

			rows := make([][]string, len(resp.Results))
			for i, r := range resp.Results {
				if r.Exhausted {
					out.Warn(fmt.Sprintf("schedule %s exhausted retries: %s", r.ScheduleID, r.Error))
				}
				rows[i] = []string{
					r.ScheduleID, r.Status, strconv.Itoa(r.RetryCount),
					strconv.FormatBool(r.Exhausted), r.Error,
				}
			}
			out.Print([]string{"SCHEDULE_ID", "STATUS", "RETRIES", "EXHAUSTED", "ERROR"}, rows, resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "Queue the pass for herald-scheduler instead of waiting")

	return cmd
}

func newScheduleAttemptsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts SCHEDULE_ID",
		Short: "Show delivery attempts of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			attempts, err := client.ListAttempts(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(attempts))
			for i, a := range attempts {
				rows[i] = []string{
					strconv.Itoa(a.Attempt), a.Status, a.StartedAt,
					strconv.FormatInt(a.DurationMs, 10) + "ms", a.Error,
				}
			}
			out.Print([]string{"ATTEMPT", "STATUS", "STARTED_AT", "DURATION", "ERROR"}, rows, attempts)
			return nil
		},
	}
}
