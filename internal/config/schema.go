// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

// configSchema describes the optional DATASERVICE_CONFIG JSON document:
// snapshot forwarder settings and privilege-drop user/group. Everything
// else is sourced from individual environment variables (see config.go).
var configSchema = `
{
  "type": "object",
  "properties": {
    "user": {
      "description": "Drop root permissions to this user once privileged ports are bound.",
      "type": "string"
    },
    "group": {
      "description": "Drop root permissions to this group once privileged ports are bound.",
      "type": "string"
    },
    "history-length": {
      "description": "Number of samples kept in each tag's history ring buffer.",
      "type": "integer",
      "minimum": 1
    },
    "nats": {
      "description": "Optional snapshot forwarder publishing periodic DataStore snapshots to a NATS subject.",
      "type": "object",
      "properties": {
        "address": { "type": "string" },
        "subject": { "type": "string" },
        "username": { "type": "string" },
        "password": { "type": "string" },
        "creds-file-path": { "type": "string" },
        "interval": { "type": "string" },
        "queue-size": { "type": "integer", "minimum": 1 }
      },
      "required": ["address", "subject"]
    }
  }
}`
