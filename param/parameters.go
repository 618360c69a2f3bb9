/***************************************************************
 *
 * Copyright (C) 2025, StudyShelf Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package param

var (
	Logging_Level = StringParam{"Logging.Level"}

	Server_Address    = StringParam{"Server.Address"}
	Server_WebPort    = IntParam{"Server.WebPort"}
	Server_DbLocation = StringParam{"Server.DbLocation"}
	Server_JwtSecret  = StringParam{"Server.JwtSecret"}

	Hosting_ApiUrl            = StringParam{"Hosting.ApiUrl"}
	Hosting_ContentUrl        = StringParam{"Hosting.ContentUrl"}
	Hosting_AppKey            = StringParam{"Hosting.AppKey"}
	Hosting_AppSecret         = StringParam{"Hosting.AppSecret"}
	Hosting_QuotaCeilingBytes = Int64Param{"Hosting.QuotaCeilingBytes"}
	Hosting_FolderPrefix      = StringParam{"Hosting.FolderPrefix"}

	Storage_Url        = StringParam{"Storage.Url"}
	Storage_ServiceKey = StringParam{"Storage.ServiceKey"}
	Storage_Bucket     = StringParam{"Storage.Bucket"}

	Transport_MaxIdleConns          = IntParam{"Transport.MaxIdleConns"}
	Transport_IdleConnTimeout       = DurationParam{"Transport.IdleConnTimeout"}
	Transport_TLSHandshakeTimeout   = DurationParam{"Transport.TLSHandshakeTimeout"}
	Transport_ExpectContinueTimeout = DurationParam{"Transport.ExpectContinueTimeout"}
	Transport_ResponseHeaderTimeout = DurationParam{"Transport.ResponseHeaderTimeout"}
	Transport_DialerTimeout         = DurationParam{"Transport.DialerTimeout"}
	Transport_DialerKeepAlive       = DurationParam{"Transport.DialerKeepAlive"}
)
