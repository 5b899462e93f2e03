package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/event"
	"github.com/jpfielding/dicm/pkg/dicm/tag"
	"github.com/jpfielding/dicm/pkg/dicm/testfixture"
	"github.com/jpfielding/dicm/pkg/dicm/writer"
	"github.com/jpfielding/dicm/pkg/util"
)

// NewGenDicomCmd writes a minimal synthetic explicit-VR-little-endian
// dataset, in the spirit of leo-cydar/_opendcm's util/gendicom: just
// enough elements (transfer syntax, SOP instance UID, modality,
// rows/columns) for the rest of the toolchain to exercise against.
func NewGenDicomCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gendicom",
		Short: "generate a minimal synthetic DICOM dataset",
		Long:  "gendicom writes a small explicit-VR-little-endian dataset to --out, for use as test input elsewhere.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			seed, _ := cmd.Flags().GetString("seed")
			modality, _ := cmd.Flags().GetString("modality")
			rows, _ := cmd.Flags().GetInt("rows")
			columns, _ := cmd.Flags().GetInt("columns")

			var dst *os.File
			var err error
			if out == "-" {
				dst = os.Stdout
			} else {
				dst, err = os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer dst.Close()
			}

			sopInstanceUID := testfixture.GeneratedSOPInstanceUID()
			if seed != "" {
				sopInstanceUID = seededUID(seed)
			}
			return writeSyntheticDataset(writer.New(bytestream.FromWriter(dst)), sopInstanceUID, modality, rows, columns)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("out", "o", "-", "destination path, or - for stdout")
	pf.String("seed", "", "derive a deterministic SOP Instance UID from this string instead of generating a random one")
	pf.String("modality", "OT", "Modality (0008,0060) value")
	pf.Int("rows", 2, "Rows (0028,0010) value")
	pf.Int("columns", 2, "Columns (0028,0011) value")
	return cmd
}

// seededUID derives a DICOM-legal (digits and dots only) UID from an
// arbitrary seed string via util.Md5ThenHex, the same "2.25."
// root-plus-big-integer shape as testfixture.GeneratedSOPInstanceUID,
// but deterministic.
func seededUID(seed string) string {
	n, _ := new(big.Int).SetString(util.Md5ThenHex([]byte(seed)), 16)
	return "2.25." + n.String()
}

func writeSyntheticDataset(w *writer.Writer, sopInstanceUID, modality string, rows, columns int) error {
	put := func(ev event.Event) error { return w.Put(ev) }

	attr := func(group, element uint16, vr string, value []byte) error {
		if len(value)%2 != 0 {
			value = append(value, 0x00)
		}
		a := event.Attribute{Tag: tag.Tag{Group: group, Element: element}, VR: vr, Length: uint32(len(value))}
		if err := put(event.Event{Kind: event.StartAttribute, Attribute: a}); err != nil {
			return err
		}
		if err := put(event.Event{Kind: event.Value, Attribute: a, Chunk: value}); err != nil {
			return err
		}
		return put(event.Event{Kind: event.EndAttribute, Attribute: a})
	}

	us := func(v int) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return b
	}

	if err := put(event.Event{Kind: event.StartModel}); err != nil {
		return err
	}
	if err := attr(0x0002, 0x0010, "UI", []byte("1.2.840.10008.1.2.1")); err != nil { // Explicit VR LE
		return err
	}
	if err := attr(0x0008, 0x0018, "UI", []byte(sopInstanceUID)); err != nil { // SOP Instance UID
		return err
	}
	if err := attr(0x0008, 0x0060, "CS", []byte(modality)); err != nil { // Modality
		return err
	}
	if err := attr(0x0028, 0x0010, "US", us(rows)); err != nil { // Rows
		return err
	}
	if err := attr(0x0028, 0x0011, "US", us(columns)); err != nil { // Columns
		return err
	}
	return put(event.Event{Kind: event.EndModel})
}
