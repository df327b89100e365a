package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"carbonseed.io/console/internal/ingest"
	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/logger"
	"carbonseed.io/console/pkg/telemetry"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Submit a bulk JSON file",
	Long: `Submit a bulk JSON document to the backend, the way the admin data
tab does. The document is validated locally and never posted when
malformed. Unlike the console, an unreachable backend is always an error.

With --generate, a synthetic document is built instead of reading --file:
device records for kind "devices", a reading series for kind "readings".`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().String("kind", string(ingest.KindDevices), "Record type (devices, readings, alerts)")
	uploadCmd.Flags().String("file", "", "JSON file to upload")
	uploadCmd.Flags().Int("generate", 0, "Generate this many records instead of reading --file")
	uploadCmd.Flags().Int("factory-id", 1, "Factory of generated devices")
	uploadCmd.Flags().Int("device-id", 1, "Device of generated readings")
	uploadCmd.Flags().Uint64("seed", 0, "Seed for generated records (0 picks one)")
	uploadCmd.Flags().String("api-url", "http://localhost:8000", "Backend REST API base URL")
	uploadCmd.Flags().String("api-token", "", "Bearer token (see the login command)")

	_ = viper.BindPFlag("upload.api.url", uploadCmd.Flags().Lookup("api-url"))
	_ = viper.BindPFlag("upload.api.token", uploadCmd.Flags().Lookup("api-token"))
}

func runUpload(cmd *cobra.Command, _ []string) error {
	log := GetLogger()
	flags := cmd.Flags()

	kindName, _ := flags.GetString("kind")
	kind, err := ingest.ParseKind(kindName)
	if err != nil {
		return err
	}

	path, _ := flags.GetString("file")
	n, _ := flags.GetInt("generate")

	var content []byte
	switch {
	case n > 0:
		factoryID, _ := flags.GetInt("factory-id")
		deviceID, _ := flags.GetInt("device-id")
		seed, _ := flags.GetUint64("seed")
		content, err = generate(kind, n, factoryID, deviceID, seed)
	case path != "":
		content, err = os.ReadFile(path)
	default:
		err = errors.New("either --file or --generate is required")
	}
	if err != nil {
		return err
	}

	client, err := newAPIClient(log, "upload", false)
	if err != nil {
		return err
	}

	submitter, err := ingest.NewSubmitter(&ingest.SubmitterConfig{
		Logger:       logger.Component(log, "ingest"),
		Poster:       client,
		DemoFallback: false,
	})
	if err != nil {
		return err
	}

	form := &ingest.Form{Kind: kind, Buffer: string(content)}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st := submitter.Submit(ctx, viper.GetString("upload.api.token"), form)
	if st.Tone == ingest.ToneError {
		return errors.New(st.Message)
	}

	fmt.Fprintln(cmd.OutOrStdout(), st.Message)
	if st.Created > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d records created\n", st.Created)
	}
	for _, e := range st.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "rejected: %s\n", e)
	}
	return nil
}

func generate(kind ingest.Kind, n, factoryID, deviceID int, seed uint64) ([]byte, error) {
	switch kind {
	case ingest.KindDevices:
		return json.Marshal(struct {
			Devices []telemetry.DeviceRecord `json:"devices"`
		}{Devices: telemetry.Devices("GEN", factoryID, n, seed)})

	case ingest.KindReadings:
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		gen := telemetry.NewGenerator(deviceID, seed)
		return json.Marshal(struct {
			Readings []api.Reading `json:"readings"`
		}{Readings: gen.Series(time.Now(), n, time.Minute)})

	default:
		return nil, fmt.Errorf("cannot generate %s records", kind)
	}
}
