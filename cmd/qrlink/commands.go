package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tendant/qrlink/pkg/qrlink"
	"github.com/tendant/qrlink/pkg/qrlink/client"
	"github.com/tendant/qrlink/pkg/qrlink/contentkey"
)

// NewUploadCommand creates the upload command
func NewUploadCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file and print its QR payload",
		Long: `Upload a file through the gateway and print the payload to encode.

Small text and image files resolve to their inline content. Everything else
resolves to the stored object's URL once the upload completes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, v, args[0])
		},
	}

	cmd.Flags().StringP("kind", "k", "", "content kind: image, video or document (detected from the file when empty)")
	cmd.Flags().String("type", "", "MIME type (detected from the file when empty)")
	cmd.Flags().String("key-format", "legacy", "content key format: legacy or uuid")
	cmd.Flags().Duration("timeout", 2*time.Minute, "how long to wait for the upload")
	cmd.Flags().Bool("no-wait", false, "print the payload without waiting for the upload")
	for _, name := range []string{"key-format", "timeout"} {
		cobra.CheckErr(v.BindPFlag(name, cmd.Flags().Lookup(name)))
	}

	return cmd
}

func runUpload(cmd *cobra.Command, v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	name := filepath.Base(path)

	mimeType, _ := cmd.Flags().GetString("type")
	if mimeType == "" {
		mimeType = detectMimeType(name, data)
	}

	kindFlag, _ := cmd.Flags().GetString("kind")
	kind := kindForMimeType(mimeType)
	if kindFlag != "" {
		if kind, err = qrlink.ParseContentKind(kindFlag); err != nil {
			return err
		}
	}

	keys, err := contentkey.New(v.GetString("key-format"))
	if err != nil {
		return err
	}

	gateway := client.New(v.GetString("gateway"))
	timeout := v.GetDuration("timeout")
	session := qrlink.NewSession(qrlink.NewResolver(baseURL(v)), gateway,
		qrlink.WithKeyGenerator(keys),
		qrlink.WithStoreTimeout(timeout),
	)
	session.Select(kind)

	ctx := cmd.Context()
	file, err := session.Upload(ctx, qrlink.FileInput{Name: name, MimeType: mimeType, Data: data})
	if err != nil {
		return err
	}

	if v.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Uploading %s (%s, %s) as %s [%s]\n",
			name, mimeType, qrlink.FormatFileSize(file.ByteLength), file.ContentKey, qrlink.ClassifyFile(file))
	}

	if noWait, _ := cmd.Flags().GetBool("no-wait"); !noWait {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		state, err := session.Wait(waitCtx)
		if err != nil {
			return fmt.Errorf("upload did not finish: %w", err)
		}
		if state == qrlink.UploadFailed {
			_, uploadErr := session.State()
			// Only inline payloads are usable without a stored object.
			if qrlink.ClassifyFile(file) != qrlink.Inline {
				return fmt.Errorf("upload failed: %w", uploadErr)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: upload failed: %v\n", uploadErr)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), session.Payload())
	return nil
}

// NewResolveCommand creates the resolve command
func NewResolveCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [file]",
		Short: "Print the QR payload for a URL or file without uploading",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			urlText, _ := cmd.Flags().GetString("url")
			explain, _ := cmd.Flags().GetBool("explain")
			remote, _ := cmd.Flags().GetBool("remote")

			kind := qrlink.KindURL
			var file *qrlink.UploadedFile
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read file: %w", err)
				}
				name := filepath.Base(args[0])
				mimeType := detectMimeType(name, data)
				kind = kindForMimeType(mimeType)
				file = &qrlink.UploadedFile{
					DisplayName: name,
					MimeType:    mimeType,
					ByteLength:  int64(len(data)),
					Data:        qrlink.EncodeDataURI(mimeType, data),
				}
			}

			var res qrlink.Resolution
			if remote {
				resolved, err := client.New(v.GetString("gateway")).Resolve(cmd.Context(), kind, urlText, file)
				if err != nil {
					return err
				}
				res = *resolved
			} else {
				res = qrlink.NewResolver(baseURL(v)).Explain(kind, urlText, file)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Payload)
			if explain {
				fmt.Fprintf(cmd.ErrOrStderr(), "source=%s classification=%s\n", res.Source, res.Classification)
			}
			return nil
		},
	}

	cmd.Flags().String("url", "", "URL to encode")
	cmd.Flags().Bool("explain", false, "print which rule produced the payload")
	cmd.Flags().Bool("remote", false, "resolve through the gateway's /resolve endpoint")
	return cmd
}

// NewLocateCommand creates the locate command
func NewLocateCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <fileId>",
		Short: "Print where a content key resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := client.New(v.GetString("gateway")).Locate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), location)
			return nil
		},
	}
}

// NewBlobsCommand creates the blobs command
func NewBlobsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "blobs",
		Short: "Check gateway storage and list a few stored objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			diag, err := client.New(v.GetString("gateway")).Diagnostics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d objects)\n", diag.Message, diag.BlobCount)
			for _, b := range diag.Blobs {
				fmt.Fprintf(out, "  %-60s %s\n", b.Pathname, qrlink.FormatFileSize(b.Size))
			}
			return nil
		},
	}
}

func detectMimeType(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
		return t
	}
	t := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}

func kindForMimeType(mimeType string) qrlink.ContentKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return qrlink.KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return qrlink.KindVideo
	default:
		return qrlink.KindDocument
	}
}
