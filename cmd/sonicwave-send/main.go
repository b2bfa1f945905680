/*
@Description: Demo CLI - sends one message over a loopback acoustic transport
*/

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/tcfialho/sonicwave"
	"github.com/tcfialho/sonicwave/loopback"
)

func main() {
	app := cli.NewApp()
	app.Name = "sonicwave-send"
	app.Usage = "send a message through a loopback acoustic transport"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "message, m", Value: "Hello World!", Usage: "payload to send"},
		cli.StringFlag{Name: "protocol-tag, p", Value: "NORMAL", Usage: "NORMAL, FAST, or FASTEST"},
		cli.StringFlag{Name: "fec-scheme, f", Value: "STRONG_OVERLAPPING_3", Usage: "FEC scheme token"},
		cli.BoolFlag{Name: "compress, c", Usage: "gzip-compress the payload before chunking"},
		cli.Float64Flag{Name: "loss-rate", Value: 0, Usage: "fraction of frames to drop, 0..1"},
		cli.Float64Flag{Name: "corrupt-rate", Value: 0, Usage: "fraction of frames to single-bit-corrupt, 0..1"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	lossRate := c.Float64("loss-rate")
	corruptRate := c.Float64("corrupt-rate")

	transport := loopback.New("NORMAL", "FAST", "FASTEST")
	transport.Loss = func(int) bool { return lossRate > 0 && rand.Float64() < lossRate }
	transport.Corrupt = func(frame string) string {
		if corruptRate <= 0 || rand.Float64() >= corruptRate || len(frame) == 0 {
			return frame
		}
		b := []byte(frame)
		b[rand.Intn(len(b))] ^= 0x01
		return string(b)
	}

	eng, err := sonicwave.NewEngine(sonicwave.Config{
		Transport: transport,
		OnText: func(sid string, message []byte) {
			fmt.Printf("[delivered sid=%s] %s\n", sid, message)
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	eng.StartReceive(ctx)

	scheme := sonicwave.ResolveFECSchemeName(c.String("fec-scheme"))
	sid, err := eng.Send(ctx, []byte(c.String("message")), c.String("protocol-tag"), c.Bool("compress"), &scheme, func(ev sonicwave.ProgressEvent) {
		fmt.Printf("progress: %s %d/%d sid=%s\n", ev.Type, ev.Current, ev.Total, ev.SID)
	})
	if err != nil {
		return err
	}
	fmt.Printf("sent sid=%s\n", sid)
	return nil
}
