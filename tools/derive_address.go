package main

import (
	"fmt"
	"os"
	"strconv"

	"tvmdeploy/internal/message"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: derive_address <tvc-file> <public-key-hex> [workchain]")
		os.Exit(1)
	}

	code, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("Error reading code image: %v\n", err)
		os.Exit(1)
	}

	workchain := int64(0)
	if len(os.Args) > 3 {
		workchain, err = strconv.ParseInt(os.Args[3], 10, 8)
		if err != nil {
			fmt.Printf("Error parsing workchain: %v\n", err)
			os.Exit(1)
		}
	}

	addr, err := message.DeriveDeployAddress(code, os.Args[2], int32(workchain))
	if err != nil {
		fmt.Printf("Error deriving address: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", addr)
}
