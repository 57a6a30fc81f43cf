package main

import (
	"fmt"
	"io"

	"tessera/internal/buildpipeline"
)

func printStageTimings(out io.Writer, timings buildpipeline.Timings) {
	if out == nil {
		return
	}
	for _, stage := range []buildpipeline.Stage{
		buildpipeline.StageDiscover,
		buildpipeline.StageCompile,
		buildpipeline.StageEmit,
	} {
		if timings.Has(stage) {
			fmt.Fprintf(out, "%s %.1f ms\n", stage, toMillis(timings.Duration(stage)))
		}
	}
	total := timings.Sum(buildpipeline.StageDiscover, buildpipeline.StageCompile, buildpipeline.StageEmit)
	fmt.Fprintf(out, "total %.1f ms\n", toMillis(total))
}
