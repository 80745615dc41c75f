// Package minio stores behold records in a MinIO bucket.
//
// Any S3-compatible server reachable by minio-go works (Ceph, SeaweedFS,
// Garage). The AWS SDK backend lives in blobstore/s3.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	st := store.New(minioblob.NewStore(client, "cards", "behold/"))
package minio
