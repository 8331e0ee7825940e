package commands

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/driftfs/driftfs/internal/bytesize"
	"github.com/driftfs/driftfs/internal/cli/output"
	"github.com/driftfs/driftfs/internal/cli/prompt"
	"github.com/driftfs/driftfs/pkg/client"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a DriftFS server",
	Long: `Connect to a DriftFS server, authenticate, and manage your files
through an interactive menu.

Examples:
  # Connect using the configured host and port
  driftfsctl connect

  # Connect to a specific server
  driftfsctl connect --host fileserver.local --port 9999 -u user1`,
	RunE: runConnect,
}

// Menu entries, in display order.
const (
	actionList     = "List files"
	actionUpload   = "Upload a file"
	actionDownload = "Download a file"
	actionView     = "View a file"
	actionDelete   = "Delete a file"
	actionQuit     = "Quit"
)

var menuItems = []string{
	actionList, actionUpload, actionDownload, actionView, actionDelete, actionQuit,
}

func runConnect(cmd *cobra.Command, args []string) error {
	cc, err := clientConfig()
	if err != nil {
		return err
	}

	username := flagUsername
	if username == "" {
		username, err = prompt.InputRequired("Username")
		if err != nil {
			return quietAbort(err)
		}
	}
	password, err := prompt.Password("Password")
	if err != nil {
		return quietAbort(err)
	}

	addr := net.JoinHostPort(cc.Host, strconv.Itoa(cc.Port))
	c, err := client.Dial(addr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Login(username, password); err != nil {
		if errors.Is(err, client.ErrAuthFailed) {
			return fmt.Errorf("authentication failed for %s", username)
		}
		return err
	}
	fmt.Printf("Connected to %s as %s\n", addr, username)

	return menuLoop(c, cc.DownloadDir)
}

// menuLoop serves menu selections until the user quits or the session dies.
func menuLoop(c *client.Client, downloadDir string) error {
	for {
		action, err := prompt.Select("Choose an action", menuItems)
		if err != nil {
			return quietAbort(err)
		}

		switch action {
		case actionList:
			err = doList(c)
		case actionUpload:
			err = doUpload(c)
		case actionDownload:
			err = doDownload(c, downloadDir)
		case actionView:
			err = doView(c)
		case actionDelete:
			err = doDelete(c)
		case actionQuit:
			fmt.Println("Bye.")
			return nil
		}

		if err != nil {
			if prompt.IsAborted(err) {
				continue
			}
			// Server rejections and local filesystem failures are printed
			// and the menu continues; transport failures end the session.
			var srvErr *client.ServerError
			if errors.As(err, &srvErr) {
				fmt.Printf("Server: %s\n", srvErr.Detail)
				continue
			}
			var locErr *client.LocalError
			if errors.As(err, &locErr) {
				fmt.Printf("Error: %s\n", locErr.Error())
				continue
			}
			return err
		}
	}
}

// fileList renders filenames as a one-column table.
type fileList []string

func (fl fileList) Headers() []string { return []string{"FILE"} }

func (fl fileList) Rows() [][]string {
	rows := make([][]string, 0, len(fl))
	for _, name := range fl {
		rows = append(rows, []string{name})
	}
	return rows
}

func doList(c *client.Client) error {
	files, err := c.List()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(flagOutput)
	if err != nil {
		return err
	}
	return output.Print(os.Stdout, format, files, fileList(files), "No files stored.")
}

func doUpload(c *client.Client) error {
	path, err := prompt.InputRequired("Local file path")
	if err != nil {
		return err
	}

	if err := c.Upload(path, progressPrinter("Uploading")); err != nil {
		fmt.Println()
		return err
	}
	fmt.Println("\nUpload complete.")
	return nil
}

func doDownload(c *client.Client, downloadDir string) error {
	filename, err := selectRemoteFile(c)
	if err != nil {
		return err
	}

	dest, err := c.Download(filename, downloadDir, progressPrinter("Downloading"))
	if err != nil {
		fmt.Println()
		return err
	}
	fmt.Printf("\nSaved to %s\n", dest)
	return nil
}

func doView(c *client.Client) error {
	filename, err := selectRemoteFile(c)
	if err != nil {
		return err
	}

	preview, err := c.View(filename)
	if err != nil {
		return err
	}
	fmt.Printf("--- %s ---\n%s\n", filename, preview)
	return nil
}

func doDelete(c *client.Client) error {
	filename, err := selectRemoteFile(c)
	if err != nil {
		return err
	}

	ok, err := prompt.Confirm(fmt.Sprintf("Delete %s", filename))
	if err != nil || !ok {
		return err
	}

	if err := c.Delete(filename); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", filename)
	return nil
}

// selectRemoteFile lists the server files and prompts for one.
func selectRemoteFile(c *client.Client) (string, error) {
	files, err := c.List()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		fmt.Println("No files stored.")
		return "", prompt.ErrAborted
	}
	return prompt.Select("Choose a file", files)
}

// progressPrinter returns a progress callback that rewrites one terminal
// line with percentage and byte counts.
func progressPrinter(verb string) func(transferred, total int64) {
	return func(transferred, total int64) {
		if total <= 0 {
			fmt.Printf("\r%s: %s", verb, bytesize.Format(transferred))
			return
		}
		pct := float64(transferred) / float64(total) * 100
		fmt.Printf("\r%s: %.1f%% (%s/%s)", verb, pct, bytesize.Format(transferred), bytesize.Format(total))
	}
}

// quietAbort turns a Ctrl+C during a prompt into a silent exit.
func quietAbort(err error) error {
	if prompt.IsAborted(err) {
		return nil
	}
	return err
}
