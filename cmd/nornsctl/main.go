package main

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"github.com/NGIOproject/NORNS-sub002/pkg/wire"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nornsctl",
	Short: "nornsctl - administrative client for nornsd",
}

func init() {
	rootCmd.PersistentFlags().String("socket", "/var/run/norns-ctl.sock", "path to nornsd's control socket")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pauseAcceptCmd)
	rootCmd.AddCommand(resumeAcceptCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(jobRegisterCmd)
	rootCmd.AddCommand(jobUnregisterCmd)
	rootCmd.AddCommand(namespaceRegisterCmd)
	rootCmd.AddCommand(namespaceUnregisterCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(taskStatusCmd)
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "check that nornsd is responding",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTripAndReport(cmd, &wire.Request{Kind: wire.ReqPing})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print global daemon counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := roundTrip(cmd, &wire.Request{Kind: wire.ReqGlobalStatus})
		if err != nil {
			return err
		}
		s := resp.Status2
		fmt.Printf("jobs=%d namespaces=%d pending=%d running=%d finished=%d error=%d accept_paused=%t\n",
			s.Jobs, s.Namespaces, s.TasksPending, s.TasksRunning, s.TasksFinished, s.TasksError, s.AcceptPaused)
		return nil
	},
}

var pauseAcceptCmd = &cobra.Command{
	Use:   "pause-accept",
	Short: "stop accepting new iotask submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTripAndReport(cmd, &wire.Request{Kind: wire.ReqCommand, Command: wire.CmdPauseAccept})
	},
}

var resumeAcceptCmd = &cobra.Command{
	Use:   "resume-accept",
	Short: "resume accepting iotask submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTripAndReport(cmd, &wire.Request{Kind: wire.ReqCommand, Command: wire.CmdResumeAccept})
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "request a graceful shutdown, equivalent to an external SIGTERM",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTripAndReport(cmd, &wire.Request{Kind: wire.ReqCommand, Command: wire.CmdShutdown})
	},
}

var jobRegisterCmd = &cobra.Command{
	Use:   "job-register JOBID HOST...",
	Short: "register a job and the hosts it spans",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		namespaces, _ := cmd.Flags().GetStringSlice("namespace")
		return roundTripAndReport(cmd, &wire.Request{
			Kind:       wire.ReqJobRegister,
			JobID:      jobID,
			Hostnames:  args[1:],
			Namespaces: namespaces,
		})
	},
}

var jobUnregisterCmd = &cobra.Command{
	Use:   "job-unregister JOBID",
	Short: "unregister a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		return roundTripAndReport(cmd, &wire.Request{Kind: wire.ReqJobUnregister, JobID: jobID})
	},
}

var namespaceRegisterCmd = &cobra.Command{
	Use:   "namespace-register NSID MOUNTPOINT",
	Short: "register a local or shared namespace",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("type")
		capacity, _ := cmd.Flags().GetUint64("capacity")
		tracked, _ := cmd.Flags().GetBool("tracked")
		return roundTripAndReport(cmd, &wire.Request{
			Kind:        wire.ReqNamespaceRegister,
			NamespaceID: args[0],
			MountPoint:  args[1],
			BackendType: types.BackendKind(kind),
			Capacity:    capacity,
			Tracked:     tracked,
		})
	},
}

var namespaceUnregisterCmd = &cobra.Command{
	Use:   "namespace-unregister NSID",
	Short: "unregister a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTripAndReport(cmd, &wire.Request{Kind: wire.ReqNamespaceUnregister, NamespaceID: args[0]})
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit OP SRC_NSID SRC_PATH DST_NSID DST_PATH",
	Short: "submit a copy/move/remove I/O task between two local_posix_path resources",
	Args:  cobra.RangeArgs(3, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		op := types.Operation(args[0])
		req := &wire.Request{
			Kind:      wire.ReqIOTaskSubmit,
			Operation: op,
			SourceSet: true,
			Source: types.ResourceDescriptor{
				Kind:        types.ResourceLocalPosixPath,
				NamespaceID: args[1],
				Path:        args[2],
			},
		}
		if len(args) == 5 {
			req.DestSet = true
			req.Destination = types.ResourceDescriptor{
				Kind:        types.ResourceLocalPosixPath,
				NamespaceID: args[3],
				Path:        args[4],
			}
		} else if op != types.OpRemove {
			return fmt.Errorf("destination namespace/path required for %q", op)
		}

		resp, err := roundTrip(cmd, req)
		if err != nil {
			return err
		}
		if resp.Code != errs.Success {
			return fmt.Errorf("%s", resp.Code)
		}
		fmt.Println(uint32(resp.TaskID))
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "task-status TASKID",
	Short: "print the status of an I/O task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id uint32
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		resp, err := roundTrip(cmd, &wire.Request{Kind: wire.ReqIOTaskStatus, TaskID: types.TaskID(id)})
		if err != nil {
			return err
		}
		if resp.Code != errs.Success {
			return fmt.Errorf("%s", resp.Code)
		}
		fmt.Printf("status=%s error_code=%d\n", resp.Status, resp.ErrorCode)
		return nil
	},
}

func init() {
	jobRegisterCmd.Flags().StringSlice("namespace", nil, "namespace ids this job may reference")
	namespaceRegisterCmd.Flags().String("type", string(types.BackendLocalPosixPath), "backend type (local_posix_path, shared_posix_path, memory_region, remote_resource)")
	namespaceRegisterCmd.Flags().Uint64("capacity", 0, "capacity in bytes (0 = unlimited)")
	namespaceRegisterCmd.Flags().Bool("tracked", false, "track namespace contents")
}

func parseJobID(s string) (types.JobID, error) {
	var id uint32
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid job id %q", s)
	}
	return types.JobID(id), nil
}

// roundTrip dials the socket named by --socket, sends req, and decodes
// the framed response.
func roundTrip(cmd *cobra.Command, req *wire.Request) (*wire.Response, error) {
	sockPath, _ := cmd.Flags().GetString("socket")
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", sockPath, err)
	}
	defer conn.Close()

	if _, err := conn.Write(wire.EncodeRequest(req)); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	var hdr [wire.HeaderSize]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading response header: %w", err)
	}
	n, err := wire.DecodeHeader(hdr[:])
	if err != nil {
		return nil, fmt.Errorf("decoding response header: %w", err)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	resp, derr := wire.DecodeResponseBody(body)
	if derr != nil {
		return nil, fmt.Errorf("decoding response: %w", derr)
	}
	return resp, nil
}

func roundTripAndReport(cmd *cobra.Command, req *wire.Request) error {
	resp, err := roundTrip(cmd, req)
	if err != nil {
		return err
	}
	if resp.Code != errs.Success {
		return fmt.Errorf("%s", resp.Code)
	}
	fmt.Println("ok")
	return nil
}
