package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"romm-autosync/config"
	"romm-autosync/romm"
	"romm-autosync/types"
)

var (
	loginHost     string
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Configure the RomM server and register this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		reader := bufio.NewReader(os.Stdin)

		host := loginHost
		if host == "" {
			host = prompt(reader, "Server URL: ")
		}
		username := loginUsername
		if username == "" {
			username = prompt(reader, "Username: ")
		}
		password := loginPassword
		if password == "" {
			password = prompt(reader, "Password: ")
		}
		host = strings.TrimRight(host, "/")
		if host == "" || username == "" {
			return fmt.Errorf("server URL and username are required")
		}

		client := romm.NewClient(host, log)
		if err := client.Authenticate(cmd.Context(), username, password); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		fmt.Println("Authenticated.")

		// A server-issued device ID enables optimistic skipping; without one
		// we fall back to a locally generated identity.
		deviceID := ""
		if device, err := client.RegisterDevice(cmd.Context()); err == nil && device.ID != "" {
			deviceID = device.ID
			fmt.Printf("Device registered as %s\n", deviceID)
		} else {
			deviceID = uuid.NewString()
			log.Warn("device registration unavailable, using local identity", "device_id", deviceID)
		}

		store := config.NewStore()
		if err := store.Load(); err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		if err := store.Update(func(s *types.Settings) {
			s.Host = host
			s.Username = username
			s.Password = password
			s.DeviceID = deviceID
		}); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Printf("Settings saved to %s\n", store.Path)
		return nil
	},
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func init() {
	loginCmd.Flags().StringVar(&loginHost, "host", "", "RomM server URL")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "RomM username")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "RomM password")
	rootCmd.AddCommand(loginCmd)
}
