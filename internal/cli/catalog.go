package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBrandCmd создаёт группу команд для брендов.
func NewBrandCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brand",
		Short: "Manage brands",
	}

	var name, timezone string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a brand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			brand, err := client.CreateBrand(CreateBrandRequest{Name: name, Timezone: timezone})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Brand %s created", brand.ID))
			out.Print([]string{"ID", "NAME", "TIMEZONE"},
				[][]string{{brand.ID, brand.Name, brand.Timezone}}, brand)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "Brand name")
	create.Flags().StringVar(&timezone, "timezone", "", "IANA timezone, e.g. America/Los_Angeles (required)")
	_ = create.MarkFlagRequired("timezone")

	cmd.AddCommand(create)
	return cmd
}

// NewCampaignCmd создаёт группу команд для кампаний.
func NewCampaignCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage campaigns",
	}

	var req CreateCampaignRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign with an inclusive date window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			campaign, err := client.CreateCampaign(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Campaign %s created", campaign.ID))
			out.Print([]string{"ID", "BRAND_ID", "NAME", "START", "END"},
				[][]string{{campaign.ID, campaign.BrandID, campaign.Name, campaign.StartDate, campaign.EndDate}}, campaign)
			return nil
		},
	}
	create.Flags().StringVar(&req.BrandID, "brand", "", "Brand ID (required)")
	create.Flags().StringVar(&req.Name, "name", "", "Campaign name")
	create.Flags().StringVar(&req.StartDate, "start", "", "First day, YYYY-MM-DD (required)")
	create.Flags().StringVar(&req.EndDate, "end", "", "Last day, YYYY-MM-DD (required)")
	_ = create.MarkFlagRequired("brand")
	_ = create.MarkFlagRequired("start")
	_ = create.MarkFlagRequired("end")

	cmd.AddCommand(create)
	return cmd
}

// NewPostCmd создаёт группу команд для постов.
func NewPostCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Manage posts",
	}

	var req CreatePostRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a post for a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			post, err := client.CreatePost(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Post %s created", post.ID))
			out.Print([]string{"ID", "CAMPAIGN_ID", "PLATFORM", "TITLE"},
				[][]string{{post.ID, post.CampaignID, post.Platform, post.Title}}, post)
			return nil
		},
	}
	create.Flags().StringVar(&req.CampaignID, "campaign", "", "Campaign ID (required)")
	create.Flags().StringVar(&req.Platform, "platform", "TWITTER", "Platform (TWITTER, INSTAGRAM, TIKTOK, FACEBOOK, LINKEDIN)")
	create.Flags().StringVar(&req.Title, "title", "", "Post title")
	create.Flags().StringVar(&req.ContentRef, "content-ref", "", "Content reference, e.g. object storage URL")
	_ = create.MarkFlagRequired("campaign")

	cmd.AddCommand(create)
	return cmd
}
