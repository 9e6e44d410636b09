// Package minio stores table files in MinIO or any S3-compatible bucket
// through the MinIO client.
//
// The Store implements blobstore.MetadataStore. When used behind a
// tablefile.Store, every saved file carries its header as object user
// metadata (rq-format, rq-rows, rq-stride, ...), uploads send their exact
// size, and Stat is answered by a single HEAD request:
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ts := tablefile.NewStore(minioblob.NewStore(client, "my-bucket", "tables/"))
//	err = ts.Save(ctx, "emb.rqt", table, encoded)
//	h, err := ts.Stat(ctx, "emb.rqt") // no GET
//
// Objects written by other clients have no such metadata; tablefile.Store
// then reads their header with a ranged GET.
package minio
