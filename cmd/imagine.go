package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/boxheat-cli/internal/imagegen"
	"github.com/KaramelBytes/boxheat-cli/internal/utils"
)

var (
	imgPrompt   string
	imgStyle    string
	imgDemo     bool
	imgSurprise bool
	imgOut      string
	imgJSON     bool
)

var imagineCmd = &cobra.Command{
	Use:   "imagine",
	Short: "Generate an image from a text prompt",
	Long: `Sends the prompt, prefixed with a style, to the text-to-image API and writes the
returned image. Without image_api_key, or with --demo, it prints a placeholder instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		prompt := strings.TrimSpace(imgPrompt)
		if prompt == "" && imgSurprise {
			prompt = imagegen.Surprise(nil)
			fmt.Printf("✓ Surprise prompt: %s\n", prompt)
		}
		style := firstNonEmpty(imgStyle, c.ImageStyle)
		if !validStyle(style) {
			return fmt.Errorf("unknown style %q (use one of: %s)", style, strings.Join(imagegen.Styles, ", "))
		}

		if imgDemo || c.ImageAPIKey == "" {
			img, err := imagegen.Demo(prompt)
			if err != nil {
				return err
			}
			if imgJSON {
				b, err := utils.PrettyJSON(img)
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}
			if !imgDemo {
				fmt.Println("⚠ Warning: image_api_key is not set; showing the demo image")
			}
			fmt.Println(img.Caption)
			fmt.Println(img.URL)
			return nil
		}

		timeout := time.Duration(c.HTTPTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client := imagegen.NewClientWithEndpoint(c.ImageAPIKey, timeout, c.ImageAPIURL)
		full := imagegen.ComposePrompt(style, prompt)
		debugf("imagine: endpoint=%s prompt=%q", c.ImageAPIURL, full)
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		img, err := client.Generate(ctx, full)
		if err != nil {
			return err
		}
		out := firstNonEmpty(imgOut, "image.png")
		if err := utils.SafeWriteFile(out, img.Data); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %s (%s, %d bytes)\n", out, img.ContentType, len(img.Data))
		return nil
	},
}

func validStyle(s string) bool {
	for _, st := range imagegen.Styles {
		if strings.EqualFold(st, s) {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(imagineCmd)
	imagineCmd.Flags().StringVar(&imgPrompt, "prompt", "", "text prompt")
	imagineCmd.Flags().StringVar(&imgStyle, "style", "", "style: "+strings.Join(imagegen.Styles, "|")+" (default from config)")
	imagineCmd.Flags().BoolVar(&imgDemo, "demo", false, "print the placeholder image without calling the API")
	imagineCmd.Flags().BoolVar(&imgSurprise, "surprise", false, "pick a random prompt when --prompt is empty")
	imagineCmd.Flags().StringVarP(&imgOut, "out", "o", "", "image output path (default image.png)")
	imagineCmd.Flags().BoolVar(&imgJSON, "json", false, "print the demo image as JSON")
}
