package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/event"
	"github.com/jpfielding/dicm/pkg/dicm/pixelrender"
	"github.com/jpfielding/dicm/pkg/dicm/reader"
)

// NewDumpCmd renders the event stream as a dcmdump-style trace: one
// line per tag/VR/length, with the stream offset just past its header
// (where its value starts). It
// never interprets a value's meaning, only its shape, matching the
// core's Non-goal on value interpretation.
func NewDumpCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "trace the event stream of a DICOM file",
		Long:  "dump renders StartAttribute/Value, sequence/item, and fragments events one per line, with one line per fragment; EndAttribute, StartFragment and EndFragment print nothing of their own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, _ := cmd.Flags().GetString("uri")
			decodePixels, _ := cmd.Flags().GetBool("decode-pixels")

			rc, err := openURI(ctx, cmd, uri)
			if err != nil {
				return err
			}
			defer rc.Close()

			r := reader.New(bytestream.FromReader(rc))
			return traceDataset(cmd, r, decodePixels)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("uri", "u", "-", "DICOM stream to read (path, file://, http(s)://, or - for stdin)")
	pf.Bool("decode-pixels", false, "decode encapsulated pixel fragments via pkg/dicm/pixelrender")
	pf.Bool("verbose", false, "dump the raw HTTP request/response when --uri is http(s)")
	return cmd
}

// traceDataset drives r to completion, printing one line per event and
// tracking just enough state (current transfer syntax, rows, columns)
// to decode pixel fragments on request -- not to interpret the
// dataset otherwise.
func traceDataset(cmd *cobra.Command, r *reader.Reader, decodePixels bool) error {
	depth := 0
	var transferSyntaxUID string
	var rows, columns int
	var lastTagGroup, lastTagElement uint16
	var fragmentIndex int
	var inFragment bool

	indent := func() string { return strings.Repeat("  ", depth) }

	for {
		ev, err := r.Next()
		if err != nil {
			return err
		}

		switch ev.Kind {
		case event.StartModel:
			fmt.Fprintln(cmd.OutOrStdout(), "StartModel")
		case event.EndModel:
			fmt.Fprintln(cmd.OutOrStdout(), "EndModel")
		case event.Eof:
			return nil

		case event.StartAttribute:
			lastTagGroup, lastTagElement = ev.Attribute.Tag.Group, ev.Attribute.Tag.Element
			fmt.Fprintf(cmd.OutOrStdout(), "%s[%08x] %s %s vl=%s\n",
				indent(), r.Position(), ev.Attribute.Tag, ev.Attribute.VR, lengthString(ev.Attribute.Length))

		case event.Value:
			data, err := io.ReadAll(limitedValueReader{r})
			if err != nil {
				return err
			}
			if inFragment {
				fmt.Fprintf(cmd.OutOrStdout(), "%sFragment %d: %d bytes\n", indent(), fragmentIndex, len(data))
				if decodePixels && fragmentIndex > 0 && len(data) > 0 {
					img, err := pixelrender.DecodeFragment(transferSyntaxUID, data, columns, rows)
					if err != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "%s  decode failed: %v\n", indent(), err)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s  decoded: %s\n", indent(), img.Bounds())
					}
				}
				fragmentIndex++
				break
			}
			if lastTagGroup == 0x0002 && lastTagElement == 0x0010 {
				transferSyntaxUID = strings.TrimRight(string(data), "\x00 ")
			}
			if lastTagGroup == 0x0028 && lastTagElement == 0x0010 && len(data) == 2 {
				rows = int(binary.LittleEndian.Uint16(data))
			}
			if lastTagGroup == 0x0028 && lastTagElement == 0x0011 && len(data) == 2 {
				columns = int(binary.LittleEndian.Uint16(data))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %d bytes\n", indent(), len(data))

		case event.EndAttribute:
			// no output; StartAttribute already reported the shape

		case event.StartSequence:
			fmt.Fprintf(cmd.OutOrStdout(), "%sStartSequence\n", indent())
			depth++
		case event.EndSequence:
			depth--
			fmt.Fprintf(cmd.OutOrStdout(), "%sEndSequence\n", indent())

		case event.StartItem:
			fmt.Fprintf(cmd.OutOrStdout(), "%sStartItem vl=%s\n", indent(), lengthString(ev.Attribute.Length))
			depth++
		case event.EndItem:
			depth--
			fmt.Fprintf(cmd.OutOrStdout(), "%sEndItem\n", indent())

		case event.StartFragments:
			fmt.Fprintf(cmd.OutOrStdout(), "%sStartFragments\n", indent())
			depth++
			fragmentIndex = 0
		case event.EndFragments:
			depth--
			fmt.Fprintf(cmd.OutOrStdout(), "%sEndFragments\n", indent())

		case event.StartFragment:
			inFragment = true
		case event.EndFragment:
			// no output; the fragment's Value event already reported the
			// byte count
			inFragment = false

		case event.Invalid:
			return ev.Err
		}
	}
}

func lengthString(length uint32) string {
	if length == event.UndefinedLength {
		return "undefined"
	}
	return strconv.FormatUint(uint64(length), 10)
}

// limitedValueReader adapts the active Value/fragment scope to
// io.Reader so io.ReadAll can drain it without a manual loop.
type limitedValueReader struct{ r *reader.Reader }

func (l limitedValueReader) Read(p []byte) (int, error) {
	n, err := l.r.ReadValue(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
