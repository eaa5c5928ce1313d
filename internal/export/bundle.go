/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"scenarioconv/internal/pipeline"
)

// BundleFileName is the download name of a zipped conversion.
const BundleFileName = "scenario_conversion_output.zip"

// Bundle renders formats and writes them as a flat zip archive to w. Failed
// formats are left out and listed in the report; Files holds archive entry names.
func Bundle(w io.Writer, res *pipeline.Result, formats []Format) (Report, error) {
	arts, failed := RenderAll(res, formats)
	rep := Report{Failed: failed}
	zw := zip.NewWriter(w)
	mod := time.Now()
	for _, a := range arts {
		if err := addZipFile(zw, a.Name, a.Data, mod); err != nil {
			_ = zw.Close()
			return rep, fmt.Errorf("zip add %s: %w", a.Name, err)
		}
		rep.Files = append(rep.Files, a.Name)
	}
	if err := zw.Close(); err != nil {
		return rep, fmt.Errorf("close zip: %w", err)
	}
	return rep, nil
}

// BundleFile writes the zip archive to path, creating parent directories.
func BundleFile(path string, res *pipeline.Result, formats []Format) (Report, error) {
	f, err := createZip(path)
	if err != nil {
		return Report{}, err
	}
	rep, err := Bundle(f, res, formats)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close zip file: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(path)
	}
	return rep, err
}

func createZip(outPath string) (*os.File, error) {
	// Ensure directory exists
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("create zip: %w", err)
	}
	return f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte, mod time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: mod})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
