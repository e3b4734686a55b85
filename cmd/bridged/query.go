package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	bridgegrpc "github.com/blockberries/bridgeberry/grpc"
	"github.com/blockberries/bridgeberry/types"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [id]",
		Short: "Show a query held by a running bridge",
		Long: `Dial a running bridge and print the status, escrow balance and, once
reported, the response of a query. The id is "#n" or a sequence number
for direct bridges and a 64-character hex content id for claim bridges.

Example:
  $ bridged query 7 --node 127.0.0.1:26680`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseQueryID(args[0])
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString("node")

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			client, err := bridgegrpc.Dial(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer client.Close()
			return printQuery(ctx, cmd, client, id)
		},
	}
	cmd.Flags().String("node", "127.0.0.1:26680", "bridge gRPC address")
	return cmd
}

func printQuery(ctx context.Context, cmd *cobra.Command, client *bridgegrpc.Client, id types.QueryID) error {
	out := cmd.OutOrStdout()
	status, err := client.Status(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "id:        %s\nstatus:    %s\n", id, status)
	if status == types.StatusUnknown || status == types.StatusRemoved {
		return nil
	}

	req, err := client.ReadRequest(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "requester: %s\ndigest:    %s\nbalance:   %d\n", req.Requester, req.Digest, req.Reward+req.InclusionReward)
	if status != types.StatusReported {
		return nil
	}
	resp, err := client.ReadResponse(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "reporter:  %s\nresult:    %x\nproof_ref: %s\n", resp.Reporter, resp.Result, resp.ProofRef)
	return nil
}
