/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package upload hands packaged traces to an uploader.
//
// A Request names the trace artifact, the source archive and where the trace
// belongs. Submitters accept requests without waiting for delivery:
//
//	q, err := upload.NewQueue(httpupload.New(client), upload.WithWorkers(4))
//	if err != nil {
//		return err
//	}
//	defer q.Close(ctx)
//
//	taskID, err := q.Submit(ctx, req)
//
// The Queue delivers requests through a Transport on a pool of workers,
// retrying transient failures with exponential backoff. Transports for HTTP,
// Google Cloud Storage and NATS live in the subpackages.
package upload
