package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/canopen-go/sdoclient/pkg/can"
	_ "github.com/canopen-go/sdoclient/pkg/can/socketcan"
	"github.com/canopen-go/sdoclient/pkg/config"
	"github.com/canopen-go/sdoclient/pkg/od"
	"github.com/canopen-go/sdoclient/pkg/sdo"
)

var defaultCanInterface = "vcan0"
var defaultNodeId = 0x10

func main() {
	log.SetLevel(log.InfoLevel)

	channel := flag.String("i", defaultCanInterface, "socketcan channel, e.g. can0, vcan0")
	nodeId := flag.Int("node", defaultNodeId, "SDO server node ID")
	odPath := flag.String("od", "", "optional object dictionary fixture (.ini) to resolve DOMAIN objects")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	bus, err := can.NewBus("socketcan", *channel)
	if err != nil {
		log.WithError(err).Fatal("sdoclient: opening bus")
	}
	busManager := can.NewBusManager(bus)
	if err := busManager.Connect(); err != nil {
		log.WithError(err).Fatal("sdoclient: connecting bus")
	}
	defer busManager.Disconnect()

	var dict *od.ObjectDictionary
	if *odPath != "" {
		dict, err = od.LoadFixture(*odPath)
		if err != nil {
			log.WithError(err).Fatal("sdoclient: loading object dictionary fixture")
		}
	}

	client, err := sdo.NewClient(busManager, uint8(*nodeId), dict, config.Default())
	if err != nil {
		log.WithError(err).Fatal("sdoclient: creating client")
	}

	switch cmd := args[0]; cmd {
	case "upload":
		runUpload(client, args[1:])
	case "download":
		runDownload(client, args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  sdoclient [-i channel] [-node id] [-od fixture.ini] upload <index> <subindex>")
	fmt.Fprintln(os.Stderr, "  sdoclient [-i channel] [-node id] [-od fixture.ini] download <index> <subindex> <hex-bytes>")
}

func runUpload(client *sdo.Client, args []string) {
	if len(args) != 2 {
		usage()
		os.Exit(2)
	}
	index := parseUint16(args[0])
	subindex := parseUint8(args[1])

	data, err := client.Upload(index, subindex)
	if err != nil {
		log.WithError(err).Fatal("sdoclient: upload failed")
	}
	fmt.Println(hex.EncodeToString(data))
}

func runDownload(client *sdo.Client, args []string) {
	if len(args) != 3 {
		usage()
		os.Exit(2)
	}
	index := parseUint16(args[0])
	subindex := parseUint8(args[1])

	data, err := hex.DecodeString(strings.TrimPrefix(args[2], "0x"))
	if err != nil {
		log.WithError(err).Fatal("sdoclient: invalid hex payload")
	}

	if err := client.Download(index, subindex, data, false); err != nil {
		log.WithError(err).Fatal("sdoclient: download failed")
	}
}

func parseUint16(s string) uint16 {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	if err != nil {
		log.WithError(err).Fatalf("sdoclient: invalid index %q", s)
	}
	return uint16(v)
}

func parseUint8(s string) uint8 {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		log.WithError(err).Fatalf("sdoclient: invalid subindex %q", s)
	}
	return uint8(v)
}
