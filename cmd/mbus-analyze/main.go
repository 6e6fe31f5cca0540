package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hemtjan.st/mbusmeter/dlms"
	"hemtjan.st/mbusmeter/mbus"
	"hemtjan.st/mbusmeter/meter"
	"hemtjan.st/mbusmeter/obis"
)

var (
	rootCmd = &cobra.Command{
		Use:   "mbus-analyze [hex]",
		Short: "Decode encrypted M-Bus smart meter telegrams",
		Long: "mbus-analyze decrypts a hex telegram as sent by the meter bridge and prints its header, " +
			"the DLMS notification and the measurements found in it.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyHex == "" {
				return errors.New("--key is required")
			}
			out := cmd.OutOrStdout()
			switch {
			case len(args) == 1:
				return analyze(out, keyHex, args[0])
			case capture != "":
				return runCapture(cmd.Context(), out, keyHex, capture)
			}
			return runInteractive(cmd.InOrStdin(), out, keyHex)
		},
	}

	keyHex  string
	capture string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&keyHex, "key", "", "hex-encoded AES key (32 or 64 hex chars)")
	rootCmd.Flags().StringVar(&capture, "capture", "", "decode every telegram in a captured bridge stream, one chunk per line")
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

func runInteractive(in io.Reader, out io.Writer, key string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	logrus.Info("mbus-analyze mode. Paste a hex telegram and press Enter (Ctrl+D to exit).")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := analyze(out, key, line); err != nil {
			logrus.WithError(err).Error("failed to decode telegram")
		}
	}
	return scanner.Err()
}

func runCapture(ctx context.Context, out io.Writer, key, path string) error {
	rc, err := meter.FileOpener(path)(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	r := mbus.NewReader(rc)
	count := 0
	for {
		telegram, err := r.ReadTelegram()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		count++
		fmt.Fprintf(out, "### Telegram %d\n", count)
		if err := analyze(out, key, telegram); err != nil {
			logrus.WithError(err).WithField("telegram", count).Error("failed to decode telegram")
		}
	}
	logrus.WithField("telegrams", count).Info("capture done")
	return nil
}

func analyze(out io.Writer, key, telegram string) error {
	telegram = strings.ToUpper(strings.Join(strings.Fields(telegram), ""))

	h, err := mbus.Parse(telegram)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Start:         %s\n", h.Start)
	fmt.Fprintf(out, "Frame length:  %d\n", h.FrameLength)
	fmt.Fprintf(out, "System title:  %s\n", h.SystemTitle)
	fmt.Fprintf(out, "Frame counter: %s\n", h.FrameCounter)
	fmt.Fprintf(out, "Ciphertext:    %d bytes\n", len(h.Ciphertext)/2)

	if sum, ok, err := mbus.Checksum(telegram); err != nil {
		fmt.Fprintf(out, "Checksum:      %v\n", err)
	} else if ok {
		fmt.Fprintf(out, "Checksum:      %02X ok\n", sum)
	} else {
		fmt.Fprintf(out, "Checksum:      %02X mismatch\n", sum)
	}

	apdu, err := mbus.Decrypt(h.Ciphertext, key, h.SystemTitle, h.FrameCounter)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "APDU:          %X\n", apdu)

	dec := &dlms.Decoder{}
	n, err := dec.DecodeNotification(apdu)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Invoke ID:     %08X\n", n.InvokeID)
	if n.Time != nil {
		fmt.Fprintf(out, "Time:          %s\n", n.Time.Format("2006-01-02 15:04:05"))
	}
	if n.Truncated {
		fmt.Fprintln(out, "Body:          truncated")
	}
	fmt.Fprint(out, n.Body.String())

	fmt.Fprintln(out, "Entries:")
	for _, e := range n.Entries {
		code, _ := obis.FormatCode(e.Code)
		d, ok := obis.Lookup(e.Code)
		if !ok {
			fmt.Fprintf(out, "  %-16s %d (unknown)\n", code, e.Value)
			continue
		}
		fmt.Fprintf(out, "  %-16s %d %s = %g %s\n", code, e.Value, d.Key, d.Transform.Apply(e.Value), d.Unit)
	}

	record := obis.NewMapper(nil).Map(n.Entries)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}
