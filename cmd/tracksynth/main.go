// tracksynth writes synthetic tracking datasets as parquet files, optionally
// uploading them to an S3 bucket.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/google/uuid"
	"github.com/metrico/healpipe/healpix"
	"github.com/metrico/healpipe/model"
	"github.com/metrico/healpipe/source"
	"github.com/minio/minio-go/v7"
)

type options struct {
	out   string
	kind  model.Kind
	rows  int
	steps int
	nside int
	seed  uint64
	s3    source.S3Options
	dest  string
}

func main() {
	var o options
	var kind string
	flag.StringVar(&o.out, "out", ".", "Output directory")
	flag.StringVar(&kind, "kind", string(model.KindIndividual), "Dataset kind: individual, species, trajectory or destine")
	flag.IntVar(&o.rows, "rows", 10000, "Rows per timestep")
	flag.IntVar(&o.steps, "steps", 24, "Number of timesteps")
	flag.IntVar(&o.nside, "nside", 64, "Resolution of the generated cells")
	flag.Uint64Var(&o.seed, "seed", 1, "Random seed")
	flag.StringVar(&o.dest, "s3-dest", "", "Upload to s3://bucket/prefix when set")
	flag.StringVar(&o.s3.Endpoint, "s3-endpoint", "localhost:9000", "S3 endpoint")
	flag.StringVar(&o.s3.Key, "s3-key", "", "S3 access key")
	flag.StringVar(&o.s3.Secret, "s3-secret", "", "S3 secret")
	flag.StringVar(&o.s3.Region, "s3-region", "", "S3 region")
	flag.BoolVar(&o.s3.Secure, "s3-secure", false, "Use TLS for S3")
	flag.Parse()
	o.kind = model.Kind(kind)

	t := time.Now()
	name, err := run(context.Background(), o)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%s written in %v\n", name, time.Since(t))
}

func run(ctx context.Context, o options) (string, error) {
	if !o.kind.Valid() {
		return "", fmt.Errorf("unknown kind %q", o.kind)
	}
	if err := healpix.ValidateNside(o.nside); err != nil {
		return "", err
	}
	name := filepath.Join(o.out, uuid.New().String()+".parquet")
	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	// the parquet writer closes f once the footer is written
	if err := write(f, o); err != nil {
		return "", err
	}
	if o.dest != "" {
		if err := upload(ctx, name, o); err != nil {
			return "", err
		}
	}
	return name, nil
}

func schemaFor(k model.Kind) *arrow.Schema {
	c := model.DefaultColumns(k)
	fields := []arrow.Field{{Name: c.Cell, Type: arrow.PrimitiveTypes.Int64}}
	switch k {
	case model.KindDestine:
		fields = append(fields,
			arrow.Field{Name: c.EnvTemperature, Type: arrow.PrimitiveTypes.Float64},
			arrow.Field{Name: c.Salinity, Type: arrow.PrimitiveTypes.Float64},
			arrow.Field{Name: c.Year, Type: arrow.PrimitiveTypes.Int64})
	case model.KindSpecies:
		fields = append(fields, arrow.Field{Name: c.Value, Type: arrow.PrimitiveTypes.Float64})
	default:
		fields = append(fields,
			arrow.Field{Name: c.Time, Type: &arrow.TimestampType{Unit: arrow.Nanosecond}},
			arrow.Field{Name: c.Value, Type: arrow.PrimitiveTypes.Float64},
			arrow.Field{Name: c.Temperature, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
			arrow.Field{Name: c.Pressure, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// write emits one record batch per timestep. Every step draws cells around a
// drifting center, with the densest cell first.
func write(w io.Writer, o options) error {
	schema := schemaFor(o.kind)
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Zstd))
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.NewArrowWriterProperties())
	if err != nil {
		return err
	}
	r := rand.New(rand.NewPCG(o.seed, o.seed))
	cells := healpix.NumCells(o.nside)
	steps := o.steps
	if !o.kind.HasTime() {
		steps = 1
	}
	start := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	center := r.Int64N(cells)
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	for s := 0; s < steps; s++ {
		center = (center + r.Int64N(16)) % cells
		ts := arrow.Timestamp(start.Add(time.Duration(s) * time.Hour).UnixNano())
		for i := 0; i < o.rows; i++ {
			cell := (center + int64(i)) % cells
			density := 1e-3 / float64(i+1)
			b.Field(0).(*array.Int64Builder).Append(cell)
			switch o.kind {
			case model.KindDestine:
				b.Field(1).(*array.Float64Builder).Append(8 + 10*r.Float64())
				b.Field(2).(*array.Float64Builder).Append(33 + 3*r.Float64())
				b.Field(3).(*array.Int64Builder).Append(int64(2030 + s))
			case model.KindSpecies:
				b.Field(1).(*array.Float64Builder).Append(density)
			default:
				b.Field(1).(*array.TimestampBuilder).Append(ts)
				b.Field(2).(*array.Float64Builder).Append(density)
				if i == 0 {
					b.Field(3).(*array.Float64Builder).Append(6 + 6*r.Float64())
					b.Field(4).(*array.Float64Builder).Append(5 + 100*r.Float64())
				} else {
					b.Field(3).(*array.Float64Builder).AppendNull()
					b.Field(4).(*array.Float64Builder).AppendNull()
				}
			}
		}
		rec := b.NewRecord()
		err := fw.WriteBuffered(rec)
		rec.Release()
		if err != nil {
			fw.Close()
			return err
		}
	}
	return fw.Close()
}

func upload(ctx context.Context, name string, o options) error {
	bucket, prefix, err := source.SplitS3(o.dest)
	if err != nil {
		return err
	}
	client, err := source.NewS3Client(o.s3)
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	file, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}
	key := path.Join(prefix, filepath.Base(name))
	_, err = client.PutObject(ctx, bucket, key, file, info.Size(), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}
