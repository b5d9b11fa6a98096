package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	cli "github.com/spf13/pflag"

	"valuebot/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: valuebot-ctl [-s socket] <ping|stats|reset|values> [user_id]\n")
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	req := ipc.Request{Cmd: args[0]}
	if len(args) > 1 {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad user_id:", args[1])
			os.Exit(2)
		}
		req.UserID = id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := ipc.Send(ctx, *socket, req)
	if err != nil {
		fmt.Println("valuebot not running:", err)
		os.Exit(1)
	}

	fmt.Println(resp.Message)
	for _, v := range resp.Values {
		fmt.Printf("%s  %s\n", v.CreatedAt.Local().Format("2006-01-02 15:04"), v.Value)
	}
	if !resp.OK {
		os.Exit(1)
	}
}
