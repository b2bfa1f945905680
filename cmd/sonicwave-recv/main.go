/*
@Description: Demo CLI - receives messages from a loopback acoustic transport, feeding it a canned send
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
	app.Name = "sonicwave-recv"
	app.Usage = "receive side demo: listens on a loopback transport fed by a canned message"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "protocol-tag, p", Value: "NORMAL", Usage: "NORMAL, FAST, or FASTEST"},
		cli.StringFlag{Name: "fec-scheme, f", Value: "STRONG_OVERLAPPING_3", Usage: "FEC scheme token"},
		cli.BoolFlag{Name: "compress, c", Usage: "gzip-compress the demo payload before chunking"},
		cli.Float64Flag{Name: "loss-rate", Value: 0.1, Usage: "fraction of frames to drop, 0..1"},
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

	delivered := make(chan struct{}, 1)
	eng, err := sonicwave.NewEngine(sonicwave.Config{
		Transport: transport,
		Logger:    log.Default(),
		OnText: func(sid string, message []byte) {
			fmt.Printf("[delivered sid=%s] %s\n", sid, message)
			delivered <- struct{}{}
		},
		OnFile: sonicwave.DirFileAdapter{Dir: "./sonicwave-received"},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	eng.StartReceive(ctx)

	scheme := sonicwave.ResolveFECSchemeName(c.String("fec-scheme"))
	payload := []byte("Hello from sonicwave-recv's canned demo message.")
	if _, err := eng.Send(ctx, payload, c.String("protocol-tag"), c.Bool("compress"), &scheme, nil); err != nil {
		return err
	}

	select {
	case <-delivered:
	case <-time.After(90 * time.Second):
		fmt.Println("timed out waiting for delivery; stats:")
	}
	fmt.Printf("%+v\n", eng.Stats().Copy())
	return nil
}
