package main

import (
	"context"
	"fmt"

	"github.com/trezcool/hocsinh/core/student"
)

func (cli *commandLine) generate(count int, bots bool) error {
	ctx := context.Background()
	var (
		n   int
		err error
	)
	if bots {
		if count == 0 {
			count = student.DefaultBotCount
		}
		n, err = cli.studentSvc.GenerateBots(ctx, count)
	} else {
		if count == 0 {
			count = student.DefaultSampleCount
		}
		n, err = cli.studentSvc.GenerateSamples(ctx, count)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %d students\n", n)
	return nil
}

func (cli *commandLine) clear(all bool) error {
	ctx := context.Background()
	var (
		n   int
		err error
	)
	if all {
		n, err = cli.studentSvc.ClearAll(ctx)
	} else {
		n, err = cli.studentSvc.DeleteSynthetic(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d students\n", n)
	return nil
}

func (cli *commandLine) sweep() error {
	n, err := cli.sweeper.Sweep()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "removed %d export files\n", n)
	return nil
}
