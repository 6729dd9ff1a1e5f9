package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hiltest/hiltest/internal/devhost"
	"github.com/hiltest/hiltest/internal/platform"
)

var (
	muxSerialFlag  string
	muxIDFlag      int
	muxVendorFlag  string
	muxProductFlag string
	muxNoSudoFlag  bool
)

var muxCmd = &cobra.Command{
	Use:   "mux",
	Short: "Control an SDWireC SD-card multiplexer",
	Long: `Control an SDWireC SD-card multiplexer through sd-mux-ctrl.

Exactly one of --serial, --id, --vendor or --product selects the device.
Commands run through sudo unless --no-sudo is given.

Examples:
  hiltest mux status --serial sdw-0042
  hiltest mux ts --id 0
  hiltest mux dut --vendor 0x04e8`,
}

var muxStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print where the SD card is connected",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mux, done, err := newMuxController(cmd)
		if err != nil {
			return err
		}
		defer done()
		target, err := mux.GetStatus(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), target)
		return nil
	},
}

var muxTSCmd = &cobra.Command{
	Use:   "ts",
	Short: "Connect the SD card to the test server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMuxSwitch(cmd, devhost.TS)
	},
}

var muxDUTCmd = &cobra.Command{
	Use:   "dut",
	Short: "Connect the SD card to the device under test",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMuxSwitch(cmd, devhost.DUT)
	},
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	pf := muxCmd.PersistentFlags()
	pf.StringVar(&muxSerialFlag, "serial", "", "Select the multiplexer by FTDI serial number")
	pf.IntVar(&muxIDFlag, "id", -1, "Select the multiplexer by enumeration id")
	pf.StringVar(&muxVendorFlag, "vendor", "", "Select the multiplexer by USB vendor id (hex)")
	pf.StringVar(&muxProductFlag, "product", "", "Select the multiplexer by USB product id (hex)")
	pf.BoolVar(&muxNoSudoFlag, "no-sudo", false, "Run sd-mux-ctrl without sudo")
	muxCmd.AddCommand(muxStatusCmd, muxTSCmd, muxDUTCmd)
	rootCmd.AddCommand(muxCmd)
}

func runMuxSwitch(cmd *cobra.Command, target devhost.Target) error {
	mux, done, err := newMuxController(cmd)
	if err != nil {
		return err
	}
	defer done()
	if err := mux.SwitchTo(cmd.Context(), target); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ SD card connected to %s\n", target)
	return nil
}

// newMuxController builds the controller selected by the flags. done
// releases the log file and writes metrics.
func newMuxController(cmd *cobra.Command) (mux *devhost.Sdwirec, done func(), err error) {
	chooser, err := muxChooser(muxSerialFlag, muxIDFlag, muxVendorFlag, muxProductFlag)
	if err != nil {
		return nil, nil, err
	}
	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return nil, nil, err
	}

	mux = devhost.NewSdwirec(chooser, platform.New(), env.log)
	mux.Sudo = !muxNoSudoFlag
	return mux, func() { env.close(cmd.ErrOrStderr()) }, nil
}

// muxChooser builds the device chooser from the selection flags. Exactly
// one must be set; id is unset when negative.
func muxChooser(serial string, id int, vendor, product string) (devhost.Chooser, error) {
	set := 0
	for _, given := range []bool{serial != "", id >= 0, vendor != "", product != ""} {
		if given {
			set++
		}
	}
	if set != 1 {
		return devhost.Chooser{}, fmt.Errorf("exactly one of --serial, --id, --vendor or --product is required")
	}

	switch {
	case serial != "":
		return devhost.BySerial(serial), nil
	case id >= 0:
		if id > 0xffff {
			return devhost.Chooser{}, fmt.Errorf("invalid --id %d", id)
		}
		return devhost.ByID(uint16(id)), nil
	case vendor != "":
		v, err := parseUSBID(vendor)
		if err != nil {
			return devhost.Chooser{}, fmt.Errorf("invalid --vendor: %w", err)
		}
		return devhost.ByVendor(v), nil
	default:
		p, err := parseUSBID(product)
		if err != nil {
			return devhost.Chooser{}, fmt.Errorf("invalid --product: %w", err)
		}
		return devhost.ByProduct(p), nil
	}
}

// parseUSBID accepts a 16-bit id in hex, with or without a 0x prefix.
func parseUSBID(s string) (uint16, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(digits, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%q is not a 16-bit hex id", s)
	}
	return uint16(n), nil
}
